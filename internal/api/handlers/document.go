package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/doctalk-ai/doctalk/internal/api"
	"github.com/doctalk-ai/doctalk/internal/api/middleware"
	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/extract"
	"github.com/doctalk-ai/doctalk/internal/pagination"
	"github.com/doctalk-ai/doctalk/internal/repository"
	"github.com/doctalk-ai/doctalk/internal/service"
)

// maxUploadBytes caps file uploads parsed into memory.
const maxUploadBytes = 20 << 20

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type IngestionService interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*domain.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

type DocumentReader interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*repository.DocumentPage, error)
}

type URLExtractor interface {
	FromURL(ctx context.Context, rawURL string) (*extract.Extracted, error)
}

// Archiver stores raw uploads for later re-download. Optional; a nil Archiver
// disables archiving without touching the ingestion path.
type Archiver interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type DocumentHandler struct {
	ingest   IngestionService
	docs     DocumentReader
	urls     URLExtractor
	archiver Archiver
}

func NewDocumentHandler(ingest IngestionService, docs DocumentReader, urls URLExtractor, archiver Archiver) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs, urls: urls, archiver: archiver}
}

// CreateDocumentRequest is the JSON body for document creation. Either URL is
// set (the page is fetched and extracted) or Title and Content carry raw text.
type CreateDocumentRequest struct {
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	SourceRef  string `json:"source_ref,omitempty"`
	HasVectors bool   `json:"has_vectors"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type DocumentDetailResponse struct {
	DocumentResponse
	Content string `json:"content"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		Source:     string(d.Source),
		SourceRef:  d.SourceRef,
		HasVectors: d.HasVectors(),
		ChunkCount: len(d.VectorIDs),
		CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Create ingests a new document. Multipart requests carry a file upload;
// JSON requests carry a URL to fetch.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.createFromFile(w, r, userID)
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL != "" {
		h.createFromURL(w, r, userID, req.URL)
		return
	}
	h.createFromText(w, r, userID, req)
}

func (h *DocumentHandler) createFromURL(w http.ResponseWriter, r *http.Request, userID, rawURL string) {
	if !extract.ValidURL(rawURL) {
		api.Error(w, http.StatusBadRequest, "invalid url")
		return
	}

	extracted, err := h.urls.FromURL(r.Context(), rawURL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	doc, err := h.ingest.Ingest(r.Context(), service.IngestRequest{
		UserID:    userID,
		Title:     extracted.Title,
		Source:    domain.SourceKindURL,
		SourceRef: rawURL,
		Content:   extract.Normalize(extracted.Content),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) createFromText(w http.ResponseWriter, r *http.Request, userID string, req CreateDocumentRequest) {
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		api.Error(w, http.StatusBadRequest, "url, or title and content, are required")
		return
	}

	doc, err := h.ingest.Ingest(r.Context(), service.IngestRequest{
		UserID:  userID,
		Title:   req.Title,
		Source:  domain.SourceKindText,
		Content: req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) createFromFile(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !extract.SupportedFileType(filename) {
		api.HandleError(w, fmt.Errorf("%w: only .pdf, .txt and .md are accepted", domain.ErrUnsupportedFileType))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	extracted, err := h.extractFile(data, filename)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	doc, err := h.ingest.Ingest(r.Context(), service.IngestRequest{
		UserID:    userID,
		Title:     extracted.Title,
		Source:    domain.SourceKindFile,
		SourceRef: filename,
		Content:   extracted.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.archive(r.Context(), userID, doc.ID, filename, data, header)

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) extractFile(data []byte, filename string) (*extract.Extracted, error) {
	if extract.IsPDF(filename) {
		extracted, err := extract.FromPDF(data, filename)
		if err != nil {
			return nil, err
		}
		extracted.Content = extract.Normalize(extracted.Content)
		return extracted, nil
	}
	return extract.FromText(data, filename)
}

// archive stores the raw upload when an archiver is configured. Failures are
// logged and swallowed: the document is already ingested and searchable.
func (h *DocumentHandler) archive(ctx context.Context, userID, docID, filename string, data []byte, header *multipart.FileHeader) {
	if h.archiver == nil {
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := "uploads/" + userID + "/" + docID + "/" + filename
	if err := h.archiver.PutObject(ctx, key, data, contentType); err != nil {
		log.Printf("failed to archive upload for document %s: %v", docID, err)
	}
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.docs.GetByID(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DocumentDetailResponse{
		DocumentResponse: *documentToResponse(doc),
		Content:          doc.Content,
	})
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	page, err := h.docs.ListByUser(r.Context(), userID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.ingest.Delete(r.Context(), userID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
