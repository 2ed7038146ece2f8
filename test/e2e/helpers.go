//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctalk-ai/doctalk/internal/api/handlers"
	"github.com/doctalk-ai/doctalk/internal/extract"
	"github.com/doctalk-ai/doctalk/internal/llm"
	"github.com/doctalk-ai/doctalk/internal/repository"
	"github.com/doctalk-ai/doctalk/internal/server"
	"github.com/doctalk-ai/doctalk/internal/service"
	"github.com/doctalk-ai/doctalk/internal/testutil"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for end-to-end tests: a pgvector
// container, the wired service stack, and an in-process HTTP server.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	Pool      *pgxpool.Pool
	Server    *httptest.Server
	Client    *http.Client
}

// SetupE2EEnv starts the container, runs migrations, and wires the full HTTP
// stack. Embeddings and answers come from deterministic in-process fakes so
// the suite needs no API keys.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	docRepo := repository.NewDocumentRepository(pool)
	index := vectorindex.NewPostgresIndex(pool)
	embedder := &wordHashEmbedder{}

	ingestSvc := service.NewIngestService(docRepo, embedder, index)
	retrievalSvc := service.NewRetrievalService(embedder, index)
	composer := service.NewComposer(&echoRegistry{provider: &echoProvider{}})
	chatSvc := service.NewChatService(retrievalSvc, composer, service.NewHistoryStore())

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, docRepo, extract.NewURLExtractor(), nil),
		ChatHandler:     handlers.NewChatHandler(chatSvc),
	})

	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		Server:    srv,
		Client:    srv.Client(),
	}
}

// Teardown releases everything SetupE2EEnv started.
func (env *E2ETestEnv) Teardown() {
	env.Server.Close()
	env.Pool.Close()
	if err := env.PostgresC.Terminate(env.Ctx); err != nil {
		env.T.Logf("failed to terminate postgres container: %v", err)
	}
}

// wordHashEmbedder produces deterministic embeddings by hashing words into
// buckets. Shared words between texts yield high cosine similarity, which is
// enough to make retrieval ranking observable.
type wordHashEmbedder struct{}

func (e *wordHashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, embeddingDims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%embeddingDims]++
		}
		out[i] = vec
	}
	return out, nil
}

// echoProvider answers with the question it was asked, so tests can assert
// the full prompt round trip without a real LLM.
type echoProvider struct{}

func (p *echoProvider) Name() string         { return "echo" }
func (p *echoProvider) DefaultModel() string { return "echo-1" }

func (p *echoProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	last := messages[len(messages)-1]
	return "echo: " + last.Content, nil
}

type echoRegistry struct {
	provider llm.Provider
}

func (r *echoRegistry) Default() llm.Provider { return r.provider }
func (r *echoRegistry) Empty() bool           { return false }

func (r *echoRegistry) Get(name string) llm.Provider {
	if name == r.provider.Name() {
		return r.provider
	}
	return nil
}

// apiEnvelope matches the {"data": ...} / {"error": ...} response wrapper.
type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (env *E2ETestEnv) do(method, path, userID string, body io.Reader, contentType string) *http.Response {
	env.T.Helper()

	req, err := http.NewRequest(method, env.Server.URL+path, body)
	if err != nil {
		env.T.Fatalf("failed to build request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := env.Client.Do(req)
	if err != nil {
		env.T.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

// PostJSON sends a JSON body with the given user identity.
func (env *E2ETestEnv) PostJSON(path, userID string, payload any) *http.Response {
	env.T.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		env.T.Fatalf("failed to marshal payload: %v", err)
	}
	return env.do(http.MethodPost, path, userID, bytes.NewReader(body), "application/json")
}

// Get performs an authenticated GET.
func (env *E2ETestEnv) Get(path, userID string) *http.Response {
	env.T.Helper()
	return env.do(http.MethodGet, path, userID, nil, "")
}

// Delete performs an authenticated DELETE.
func (env *E2ETestEnv) Delete(path, userID string) *http.Response {
	env.T.Helper()
	return env.do(http.MethodDelete, path, userID, nil, "")
}

// UploadFile posts a multipart document upload.
func (env *E2ETestEnv) UploadFile(userID, filename, content string) *http.Response {
	env.T.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		env.T.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		env.T.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		env.T.Fatalf("failed to close multipart writer: %v", err)
	}

	return env.do(http.MethodPost, "/documents", userID, &buf, mw.FormDataContentType())
}

// DecodeData unmarshals the data field of a response envelope into out and
// fails the test on an unexpected status code.
func (env *E2ETestEnv) DecodeData(resp *http.Response, wantStatus int, out any) {
	env.T.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		env.T.Fatalf("failed to read response body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		env.T.Fatalf("unexpected status %d (want %d): %s", resp.StatusCode, wantStatus, raw)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		env.T.Fatalf("failed to decode envelope: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			env.T.Fatalf("failed to decode data: %v", err)
		}
	}
}

// ChunkCount returns how many chunks the index holds for a document.
func (env *E2ETestEnv) ChunkCount(documentID string) int {
	env.T.Helper()

	var count int
	err := env.Pool.QueryRow(env.Ctx,
		"SELECT count(*) FROM document_chunks WHERE document_id = $1", documentID).Scan(&count)
	if err != nil {
		env.T.Fatalf("failed to count chunks: %v", err)
	}
	return count
}
