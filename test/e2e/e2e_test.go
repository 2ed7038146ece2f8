//go:build e2e

package e2e

import (
	"net/http"
	"strings"
	"testing"
)

type documentData struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	SourceRef  string `json:"source_ref"`
	HasVectors bool   `json:"has_vectors"`
	ChunkCount int    `json:"chunk_count"`
	Content    string `json:"content"`
}

type documentListData struct {
	Items   []documentData `json:"items"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

type chatData struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	HasContext bool     `json:"has_context"`
	Status     string   `json:"status"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
}

const lighthouseNotes = `The Fresnel lens was installed in the lighthouse in 1902.
It replaced the original reflector array and tripled the visible range of the beam.

Keepers logged every oil delivery in the station ledger. The ledger for 1902
through 1911 survives in the county archive and lists forty-one deliveries.

The lamp was electrified in 1939, after which the oil house was converted to
storage for signal flags and spare glazing panels.`

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Teardown()

	// Upload a text file.
	var doc documentData
	env.DecodeData(env.UploadFile("user-1", "lighthouse.txt", lighthouseNotes), http.StatusCreated, &doc)

	if doc.ID == "" {
		t.Fatal("expected a document id")
	}
	if !doc.HasVectors {
		t.Error("expected document to be indexed on upload")
	}
	if doc.ChunkCount == 0 {
		t.Error("expected at least one chunk")
	}
	if got := env.ChunkCount(doc.ID); got != doc.ChunkCount {
		t.Errorf("index holds %d chunks, response claims %d", got, doc.ChunkCount)
	}

	// List shows it.
	var list documentListData
	env.DecodeData(env.Get("/documents", "user-1"), http.StatusOK, &list)
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 document, got %d", len(list.Items))
	}
	if list.HasMore {
		t.Error("expected a single page")
	}

	// Get returns the extracted content.
	var detail documentData
	env.DecodeData(env.Get("/documents/"+doc.ID, "user-1"), http.StatusOK, &detail)
	if !strings.Contains(detail.Content, "Fresnel lens") {
		t.Error("expected extracted content in detail response")
	}

	// Chat retrieves context and answers.
	var chat chatData
	env.DecodeData(env.PostJSON("/chat", "user-1", map[string]string{
		"question": "When was the Fresnel lens installed in the lighthouse?",
	}), http.StatusOK, &chat)

	if chat.Status != "success" {
		t.Fatalf("expected success status, got %q", chat.Status)
	}
	if !chat.HasContext {
		t.Error("expected retrieved context")
	}
	if len(chat.Sources) == 0 {
		t.Error("expected source chunks")
	}
	if !strings.Contains(chat.Answer, "Fresnel lens") {
		t.Errorf("expected the question echoed back, got %q", chat.Answer)
	}
	if chat.Provider != "echo" || chat.Model != "echo-1" {
		t.Errorf("unexpected provider/model %q/%q", chat.Provider, chat.Model)
	}

	// Delete removes the record and its chunks.
	env.DecodeData(env.Delete("/documents/"+doc.ID, "user-1"), http.StatusOK, nil)

	if got := env.ChunkCount(doc.ID); got != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", got)
	}

	var after documentListData
	env.DecodeData(env.Get("/documents", "user-1"), http.StatusOK, &after)
	if len(after.Items) != 0 {
		t.Errorf("expected empty list after delete, got %d items", len(after.Items))
	}

	// Chat still answers, now without context.
	var empty chatData
	env.DecodeData(env.PostJSON("/chat", "user-1", map[string]string{
		"question": "When was the lens installed?",
	}), http.StatusOK, &empty)
	if empty.HasContext {
		t.Error("expected no context after delete")
	}
	if len(empty.Sources) != 0 {
		t.Errorf("expected no sources after delete, got %d", len(empty.Sources))
	}
}

func TestE2E_UserIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Teardown()

	var doc documentData
	env.DecodeData(env.UploadFile("user-a", "lighthouse.txt", lighthouseNotes), http.StatusCreated, &doc)

	// Another user sees nothing.
	var list documentListData
	env.DecodeData(env.Get("/documents", "user-b"), http.StatusOK, &list)
	if len(list.Items) != 0 {
		t.Fatalf("expected empty list for user-b, got %d items", len(list.Items))
	}

	resp := env.Get("/documents/"+doc.ID, "user-b")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for another user's document, got %d", resp.StatusCode)
	}

	var chat chatData
	env.DecodeData(env.PostJSON("/chat", "user-b", map[string]string{
		"question": "When was the Fresnel lens installed?",
	}), http.StatusOK, &chat)
	if chat.HasContext {
		t.Error("expected no context from another user's documents")
	}

	// The owner still retrieves it.
	var owner chatData
	env.DecodeData(env.PostJSON("/chat", "user-a", map[string]string{
		"question": "When was the Fresnel lens installed?",
	}), http.StatusOK, &owner)
	if !owner.HasContext {
		t.Error("expected context for the owning user")
	}
}

func TestE2E_DocumentSearchModel(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Teardown()

	var doc documentData
	env.DecodeData(env.UploadFile("user-1", "lighthouse.txt", lighthouseNotes), http.StatusCreated, &doc)

	var chat chatData
	env.DecodeData(env.PostJSON("/chat", "user-1", map[string]string{
		"question": "Fresnel lens installation date",
		"model":    "document-search",
	}), http.StatusOK, &chat)

	if chat.Status != "document-search" {
		t.Fatalf("expected document-search status, got %q", chat.Status)
	}
	if !strings.HasPrefix(chat.Answer, "Document content:") {
		t.Errorf("expected raw document content, got %q", chat.Answer)
	}
}

func TestE2E_SameFileTwiceIsTwoDocuments(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Teardown()

	var first documentData
	env.DecodeData(env.UploadFile("user-1", "lighthouse.txt", lighthouseNotes), http.StatusCreated, &first)

	var second documentData
	env.DecodeData(env.UploadFile("user-1", "lighthouse.txt", lighthouseNotes), http.StatusCreated, &second)

	if first.ID == second.ID {
		t.Fatal("expected distinct document ids")
	}
	if env.ChunkCount(first.ID) == 0 || env.ChunkCount(second.ID) == 0 {
		t.Error("expected both documents to keep their chunks")
	}

	var list documentListData
	env.DecodeData(env.Get("/documents", "user-1"), http.StatusOK, &list)
	if len(list.Items) != 2 {
		t.Errorf("expected 2 documents, got %d", len(list.Items))
	}
}

func TestE2E_RequiresIdentity(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Teardown()

	resp := env.Get("/documents", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", resp.StatusCode)
	}
}
