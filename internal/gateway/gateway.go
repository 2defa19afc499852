// Package gateway accepts uploaded statements from the web frontend and
// relays them to the scoring service.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/factcheck/internal/scoreclient"
)

// Form fields and messages of the public contract.
const (
	StatementField = "uploaded_statement"

	msgNoStatement = "No statement uploaded"
	msgCookieSet   = "CSRF cookie set"
	// LegacyError is the confidence value reported on downstream failure
	// in legacy mode.
	LegacyError = "An error occurred"
)

// Predictor scores a statement remotely.
type Predictor interface {
	PredictConfidence(ctx context.Context, text string) (*scoreclient.Prediction, error)
}

// Config controls gateway behavior.
type Config struct {
	// FixedStatement, when non-empty and UseSubmittedStatement is false,
	// replaces every submitted statement before scoring.
	FixedStatement        string
	UseSubmittedStatement bool
	// LegacyErrorSentinel answers downstream failures with 200 and
	// {"confidence": LegacyError} instead of 502.
	LegacyErrorSentinel bool

	EnforceCSRF bool
	CSRFCookie  string
}

// Handler serves the gateway endpoints.
type Handler struct {
	cfg       Config
	predictor Predictor
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, p Predictor, logger *slog.Logger) *Handler {
	if cfg.CSRFCookie == "" {
		cfg.CSRFCookie = DefaultCSRFCookie
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, predictor: p, logger: logger}
}

// RegisterRoutes registers the gateway routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	calc := []gin.HandlerFunc{h.CalculateConfidence}
	if h.cfg.EnforceCSRF {
		calc = append([]gin.HandlerFunc{CSRF(h.cfg.CSRFCookie)}, calc...)
	}
	r.POST("/calculate-confidence/", calc...)
	r.GET("/get-csrf-token/", h.IssueCSRFToken)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// CalculateConfidence scores the uploaded statement.
func (h *Handler) CalculateConfidence(c *gin.Context) {
	statement, ok := c.GetPostForm(StatementField)
	if !ok || strings.TrimSpace(statement) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoStatement})
		return
	}
	if h.cfg.FixedStatement != "" && !h.cfg.UseSubmittedStatement {
		statement = h.cfg.FixedStatement
	}

	pred, err := h.predictor.PredictConfidence(c.Request.Context(), statement)
	if err != nil {
		h.logger.Error("scoring service call failed", "error", err)
		if h.cfg.LegacyErrorSentinel {
			c.JSON(http.StatusOK, gin.H{"confidence": LegacyError})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": downstreamMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"confidence": pred.Confidence})
}

// IssueCSRFToken makes sure the client holds a CSRF cookie.
func (h *Handler) IssueCSRFToken(c *gin.Context) {
	ensureCSRFCookie(c, h.cfg.CSRFCookie)
	c.JSON(http.StatusOK, gin.H{"message": msgCookieSet})
}

func downstreamMessage(err error) string {
	var apiErr *scoreclient.APIError
	switch {
	case errors.As(err, &apiErr):
		return "scoring service returned " + http.StatusText(apiErr.StatusCode)
	case errors.Is(err, scoreclient.ErrNoConfidence):
		return "scoring service returned no confidence"
	case errors.Is(err, context.DeadlineExceeded):
		return "scoring service timed out"
	default:
		return "scoring service unavailable"
	}
}
