package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Brownie44l1/lizzycam/internal/display"
	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/pipeline"
	"github.com/Brownie44l1/lizzycam/internal/supplier"
)

const maxFrameBytes = 32 << 20

type Handler struct {
	pipeline *pipeline.Pipeline
	mailbox  *supplier.Mailbox
	board    *display.Board
	runner   *pipeline.Runner
	classes  []string
}

func NewHandler(p *pipeline.Pipeline, mailbox *supplier.Mailbox, board *display.Board, runner *pipeline.Runner, classes []string) *Handler {
	return &Handler{
		pipeline: p,
		mailbox:  mailbox,
		board:    board,
		runner:   runner,
		classes:  classes,
	}
}

// NewRouter wires every endpoint behind the CORS middleware.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/result", h.Result).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.Stream).Methods(http.MethodGet)
	r.HandleFunc("/frames", h.SubmitFrame).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/predict/image", h.PredictFromImage).Methods(http.MethodPost, http.MethodOptions)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"classes": h.classes,
		"display": h.board.Text(),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Mailbox:     h.mailbox.Stats(),
		Subscribers: h.board.Subscribers(),
	}
	if h.runner != nil {
		resp.Runner = h.runner.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Result returns the latest snapshot, or 204 before the first one.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	s, ok := h.board.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SubmitFrame is the camera source over HTTP. The frame goes into the
// mailbox and the call returns without waiting for classification.
func (h *Handler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	var req FrameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		sendError(w, "invalid_request", "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Planes) != 3 {
		sendError(w, "invalid_frame", fmt.Sprintf("Expected 3 planes, got %d", len(req.Planes)), http.StatusBadRequest)
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		sendError(w, "invalid_frame", fmt.Sprintf("Invalid dimensions %dx%d", req.Width, req.Height), http.StatusBadRequest)
		return
	}

	f := &frame.RawFrame{
		ID:        uuid.NewString(),
		Width:     req.Width,
		Height:    req.Height,
		Planes:    [3]frame.Plane{req.Planes[0], req.Planes[1], req.Planes[2]},
		Timestamp: time.Now(),
	}
	if req.Timestamp != nil {
		f.Timestamp = *req.Timestamp
	}

	h.mailbox.Publish(f)
	writeJSON(w, http.StatusAccepted, FrameAccepted{FrameID: f.ID})
}

// Predict scores a caller-built tensor and applies the decision policy.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := h.pipeline.Builder.Len()
	if len(req.Image) != expectedSize {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	if h.pipeline.Engine == nil {
		sendError(w, "inference_failure", "No model loaded", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	if h.pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.pipeline.Timeout)
		defer cancel()
	}
	scores, err := h.pipeline.Engine.Run(ctx, req.Image)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		sendError(w, "inference_failure", "Prediction failed", http.StatusInternalServerError)
		return
	}
	result, err := h.pipeline.Policy.Decide(scores)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		sendError(w, "inference_failure", "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PredictFromImage classifies an uploaded still image. The display is not
// touched; this path is for checking the model against known photos.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}
	log.Printf("Received %s: %dx%d", header.Filename, img.Bounds().Dx(), img.Bounds().Dy())

	result, err := h.pipeline.ClassifyImage(r.Context(), img)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		sendError(w, "inference_failure", "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
