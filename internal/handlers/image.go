package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/services"
)

const (
	formFieldFile      = "file"
	maxMultipartMemory = 8 << 20
	maxUploadBody      = services.MaxImageSize + 1<<20
)

// ImageHandler uploads and deletes recipe images.
type ImageHandler struct {
	imageService *services.ImageService
	log          logging.Logger
}

func NewImageHandler(imageService *services.ImageService, log logging.Logger) *ImageHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &ImageHandler{imageService: imageService, log: log}
}

// ImageRouter registers image routes. All of them require authentication.
func ImageRouter(r chi.Router, handler *ImageHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/upload", handler.UploadImage)
	r.Delete("/", handler.DeleteImage)
}

func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusBadRequest, "File size exceeds maximum limit of 5MB")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	url, err := h.imageService.Upload(r.Context(), services.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		if errors.Is(err, services.ErrStorage) {
			writeError(w, http.StatusInternalServerError, "Failed to upload image to storage")
			return
		}
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ImageUploadResponse{
		ImageURL: url,
		Message:  "Image uploaded successfully",
	})
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	imageURL := strings.TrimSpace(r.URL.Query().Get("imageUrl"))
	if imageURL == "" {
		writeError(w, http.StatusBadRequest, "Image URL is required")
		return
	}

	if err := h.imageService.Delete(r.Context(), imageURL); err != nil {
		if errors.Is(err, services.ErrStorage) {
			writeError(w, http.StatusInternalServerError, "Failed to delete image from storage")
			return
		}
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Image deleted successfully"})
}

type ImageUploadResponse struct {
	ImageURL string `json:"imageUrl"`
	Message  string `json:"message"`
}
