package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medra-health/medirag/internal/api"
	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/service"
)

type IngestionService interface {
	Ingest(ctx context.Context, files []service.IngestFile) (*domain.IngestReport, error)
	ListDocuments(ctx context.Context) ([]domain.StoredBlob, error)
	GetDocument(ctx context.Context, contentID string) ([]byte, *domain.StoredBlob, error)
	DeleteDocument(ctx context.Context, contentID string) error
}

type DocumentsHandler struct {
	svc IngestionService
}

func NewDocumentsHandler(svc IngestionService) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

type IngestItemResponse struct {
	Filename  string `json:"filename"`
	ContentID string `json:"content_id,omitempty"`
	Key       string `json:"key,omitempty"`
	Error     string `json:"error,omitempty"`
}

type IngestResponse struct {
	Stored            []IngestItemResponse `json:"stored"`
	AlreadyPresent    []IngestItemResponse `json:"already_present"`
	Failed            []IngestItemResponse `json:"failed"`
	IndexedChunkCount int                  `json:"indexed_chunk_count"`
	SkippedChunkCount int                  `json:"skipped_chunk_count"`
}

type DocumentResponse struct {
	Key          string `json:"key"`
	Filename     string `json:"filename,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`
	Size         int64  `json:"size_bytes"`
	LastModified string `json:"last_modified,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

// Ingest accepts a multipart upload of one or more files and runs them
// through the ingestion pipeline.
func (h *DocumentsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		api.Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]service.IngestFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("failed to open %s", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s", fh.Filename))
			return
		}
		files = append(files, service.IngestFile{Filename: fh.Filename, Data: data})
	}

	report, err := h.svc.Ingest(r.Context(), files)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toIngestResponse(report))
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	blobs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	docs := make([]DocumentResponse, len(blobs))
	for i, b := range blobs {
		docs[i] = toDocumentResponse(b)
	}

	api.Success(w, http.StatusOK, ListDocumentsResponse{Documents: docs})
}

// Download streams the stored blob for a content id.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")
	if contentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	data, blob, err := h.svc.GetDocument(r.Context(), contentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	filename := blob.Filename
	if filename == "" {
		filename = contentID
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")
	if contentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), contentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toIngestResponse(report *domain.IngestReport) IngestResponse {
	return IngestResponse{
		Stored:            toIngestItems(report.Stored),
		AlreadyPresent:    toIngestItems(report.AlreadyPresent),
		Failed:            toIngestItems(report.Failed),
		IndexedChunkCount: report.IndexedChunkCount,
		SkippedChunkCount: report.SkippedChunkCount,
	}
}

func toIngestItems(items []domain.IngestItem) []IngestItemResponse {
	out := make([]IngestItemResponse, len(items))
	for i, item := range items {
		out[i] = IngestItemResponse{
			Filename:  item.Filename,
			ContentID: item.ContentID,
			Key:       item.Key,
			Error:     item.Error,
		}
	}
	return out
}

func toDocumentResponse(b domain.StoredBlob) DocumentResponse {
	lastModified := ""
	if !b.LastModified.IsZero() {
		lastModified = b.LastModified.UTC().Format(time.RFC3339)
	}
	return DocumentResponse{
		Key:          b.Key,
		Filename:     b.Filename,
		ContentHash:  b.ContentHash,
		Size:         b.Size,
		LastModified: lastModified,
	}
}
