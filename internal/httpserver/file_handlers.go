package httpserver

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/service"
)

// uploadFileRequest carries the file payload base64-encoded in JSON.
type uploadFileRequest struct {
	Sender      string  `json:"sender"`
	Filename    string  `json:"filename"`
	ContentType *string `json:"content_type,omitempty"`
	Data        string  `json:"data"`
}

func handleUploadFile(files *service.FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in uploadFileRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			writeError(w, fmt.Errorf("data must be base64: %w", domain.ErrInvalidInput))
			return
		}
		f, err := files.Upload(r.Context(), chi.URLParam(r, "roomID"), service.FileUploadInput{
			Sender:      in.Sender,
			Filename:    in.Filename,
			ContentType: in.ContentType,
			Data:        data,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	}
}

func handleListFiles(files *service.FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := files.List(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleFileInfo(files *service.FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := files.Info(r.Context(), chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

// handleDownloadFile streams the raw bytes with the stored content type.
func handleDownloadFile(files *service.FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := files.Download(r.Context(), chi.URLParam(r, "fileID"))
		if err != nil {
			writeError(w, err)
			return
		}
		contentType := "application/octet-stream"
		if f.ContentType != nil {
			contentType = *f.ContentType
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f.Data)
	}
}

func handleDeleteFile(files *service.FileService, rooms *service.RoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		isAdmin, err := optionalAdmin(r, rooms, roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := r.URL.Query().Get("sender")
		err = files.Delete(r.Context(), roomID, chi.URLParam(r, "fileID"), caller, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
