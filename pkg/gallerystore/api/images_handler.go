package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Maidang1/lumina-store/pkg/gallerystore"
	"github.com/Maidang1/lumina-store/pkg/gallerystore/objectpath"
)

// maxUploadBytes bounds one multipart upload held in memory; the backing
// contents endpoint rejects larger payloads anyway.
const maxUploadBytes = 64 << 20

// ImagesHandler handles HTTP requests for gallery images.
type ImagesHandler struct {
	store  gallerystore.Service
	logger *slog.Logger
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(store gallerystore.Service, logger *slog.Logger) *ImagesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImagesHandler{store: store, logger: logger}
}

// Routes returns the routes for images.
func (h *ImagesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.UploadImage)
	r.Get("/", h.ListImages)
	r.Post("/finalize", h.FinalizeBatch)
	r.Get("/{id}", h.GetImage)
	r.Patch("/{id}", h.UpdateImage)
	r.Delete("/{id}", h.DeleteImage)

	return r
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *ImagesHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

// statusFor maps the store's typed errors to HTTP status codes. The store
// itself never deals in status codes; the mapping lives here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gallerystore.ErrImageNotFound),
		errors.Is(err, gallerystore.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, objectpath.ErrMalformedID),
		errors.Is(err, gallerystore.ErrMalformedCursor):
		return http.StatusBadRequest
	case errors.Is(err, gallerystore.ErrRemoteConflict),
		errors.Is(err, gallerystore.ErrRefConflict):
		return http.StatusConflict
	case errors.Is(err, gallerystore.ErrBatchExhausted):
		return http.StatusBadGateway
	}
	var remote *gallerystore.RemoteError
	if errors.As(err, &remote) && (remote.Status >= 500 || remote.Status == http.StatusTooManyRequests) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// UploadImage accepts a multipart form with a "meta" JSON part (the draft
// AssetRecord) plus "original", "thumb" and optional "live" file parts.
// A "defer_finalize" field postpones the metadata/index writes for a later
// batch finalize.
func (h *ImagesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}

	var rec gallerystore.AssetRecord
	if err := json.Unmarshal([]byte(r.FormValue("meta")), &rec); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "invalid meta JSON: " + err.Error()})
		return
	}

	original, err := formFileBytes(r, "original")
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}
	thumb, err := formFileBytes(r, "thumb")
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}
	live, _ := formFileBytes(r, "live")

	deferFinalize, _ := strconv.ParseBool(r.FormValue("defer_finalize"))

	stored, err := h.store.Upload(r.Context(), gallerystore.UploadRequest{
		Record:        &rec,
		Original:      original,
		Thumb:         thumb,
		LiveVideo:     live,
		DeferFinalize: deferFinalize,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.logger.Info("image uploaded", "image_id", stored.ImageID, "deferred", deferFinalize)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, stored)
}

func formFileBytes(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, errors.New("missing form file " + strconv.Quote(field))
	}
	defer file.Close()
	return io.ReadAll(file)
}

// ListImages returns one reverse-chronological page.
func (h *ImagesHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	page, err := h.store.List(r.Context(), gallerystore.ListRequest{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// GetImage returns the metadata record of one image.
func (h *ImagesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetMetadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// UpdateImageRequest is the request body for a metadata patch.
type UpdateImageRequest struct {
	Description  *string `json:"description,omitempty"`
	FileName     *string `json:"file_name,omitempty"`
	Category     *string `json:"category,omitempty"`
	RefreshIndex bool    `json:"refresh_index,omitempty"`
}

// UpdateImage applies a partial update to the mutable metadata fields.
func (h *ImagesHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	var req UpdateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	rec, err := h.store.UpdateMetadata(r.Context(), gallerystore.UpdateMetadataRequest{
		ImageID:      chi.URLParam(r, "id"),
		Description:  req.Description,
		FileName:     req.FileName,
		Category:     req.Category,
		RefreshIndex: req.RefreshIndex,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// DeleteImage removes an image's files and index entry, reporting what was
// actually deleted.
func (h *ImagesHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.logger.Info("image deleted", "image_id", result.ImageID, "removed", len(result.RemovedPaths))
	render.JSON(w, r, result)
}

// FinalizeBatchRequest carries the records of a deferred batch.
type FinalizeBatchRequest struct {
	Records []*gallerystore.AssetRecord `json:"records"`
}

// FinalizeBatch commits the metadata of previously uploaded images plus the
// rebuilt index as one atomic commit.
func (h *ImagesHandler) FinalizeBatch(w http.ResponseWriter, r *http.Request) {
	var req FinalizeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := h.store.FinalizeBatch(r.Context(), req.Records); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.logger.Info("batch finalized", "records", len(req.Records))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]int{"finalized": len(req.Records)})
}
