// Package api exposes the scoring service over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/factcheck/internal/engine"
	"github.com/crimson-sun/factcheck/internal/engine/encoder"
	"github.com/crimson-sun/factcheck/internal/model"
)

// Sources is the placeholder provenance returned with every score.
const Sources = "Source details would be implemented here"

// Scorer is the part of the engine the handlers need.
type Scorer interface {
	Score(text string) (model.Prediction, error)
	Info() (engine.Info, error)
	Loaded() bool
}

// PredictRequest is the body of POST /predict_confidence.
type PredictRequest struct {
	Text string `json:"text"`
}

// PredictResponse is the success body of POST /predict_confidence.
type PredictResponse struct {
	Confidence float64 `json:"confidence"`
	Sources    string  `json:"sources"`
	Label      *int    `json:"label,omitempty"`
}

// Handler serves the scoring endpoints.
type Handler struct {
	scorer Scorer
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(s Scorer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{scorer: s, logger: logger}
}

// RegisterRoutes registers all scoring routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/predict_confidence", h.PredictConfidence)
	r.GET("/model/info", h.ModelInfo)
	r.GET("/health", h.Health)
}

// PredictConfidence scores one statement.
func (h *Handler) PredictConfidence(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	pred, err := h.scorer.Score(req.Text)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("scoring failed", "error", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resp := PredictResponse{Confidence: pred.Confidence, Sources: Sources}
	if pred.Label >= 0 {
		label := pred.Label
		resp.Label = &label
	}
	c.JSON(http.StatusOK, resp)
}

// ModelInfo describes the loaded model.
func (h *Handler) ModelInfo(c *gin.Context) {
	info, err := h.scorer.Info()
	if err != nil {
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Health reports whether a model is ready to score.
func (h *Handler) Health(c *gin.Context) {
	if !h.scorer.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "model_loaded": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_loaded": true})
}

func errorStatus(err error) (int, string) {
	var encErr *encoder.EncodingError
	switch {
	case errors.Is(err, engine.ErrEmptyStatement):
		return http.StatusBadRequest, "Text must not be empty"
	case errors.Is(err, engine.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "Model not loaded"
	case errors.As(err, &encErr):
		return http.StatusUnprocessableEntity, encErr.Error()
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
