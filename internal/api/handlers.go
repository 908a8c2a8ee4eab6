package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/walkingpad-tracker/internal/imaging"
	"github.com/zombor/walkingpad-tracker/internal/storage"
)

// maxUploadSize bounds an uploaded capture
const maxUploadSize = int64(50 << 20)

// problem is an RFC 7807 problem body
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// writeProblem writes an application/problem+json response
func writeProblem(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(problem{
		Title:  http.StatusText(code),
		Status: code,
		Detail: detail,
	}); err != nil {
		slog.Error("Error encoding problem", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleHealthcheck reports liveness
func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "error", err)
	}
}

// handleUpload stores the raw request body as a PNG capture
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		slog.Error("Error reading upload body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Image is too large. Maximum size is 50MB.")
			return
		}
		writeProblem(w, http.StatusBadRequest, "Error reading image")
		return
	}

	result, err := s.service.Upload(r.Context(), data)
	if err != nil {
		if errors.Is(err, ErrEmptyImage) {
			writeProblem(w, http.StatusBadRequest, "No image data provided")
			return
		}
		slog.Error("Error uploading capture", "error", err)
		writeProblem(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleAnalyze returns the model's raw answer for the image at imageUrl.
// The body is labelled JSON but is whatever the model produced.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("imageUrl")

	text, err := s.service.Analyze(r.Context(), imageURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingImageURL):
			writeProblem(w, http.StatusBadRequest, "Image URL is required")
		case errors.Is(err, ErrForeignImageURL):
			writeProblem(w, http.StatusBadRequest, "Image URL is not a stored capture")
		case errors.Is(err, storage.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "Capture not found")
		default:
			writeProblem(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(text))
}

// handleGetCapture serves a stored capture
func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.service.GetCapture(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Capture not found")
			return
		}
		if errors.Is(err, storage.ErrInvalidName) {
			writeProblem(w, http.StatusBadRequest, "Invalid capture name")
			return
		}
		slog.Error("Error reading capture", "name", name, "error", err)
		writeProblem(w, http.StatusInternalServerError, "Error reading capture")
		return
	}

	w.Header().Set("Content-Type", imaging.ContentTypePNG)
	w.Write(data)
}
