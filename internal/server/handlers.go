// File: internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/pipeline"
	"github.com/xkilldash9x/amp-optimizer/internal/reporting"
	"github.com/xkilldash9x/amp-optimizer/internal/sanitize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response headers describing the outcome of an optimization.
const (
	HeaderErrors = "X-AMP-Errors"
	HeaderStatus = "X-AMP-Status"
)

// Handlers manages the HTTP request handling for the server.
type Handlers struct {
	log          *zap.Logger
	pipeline     *pipeline.Pipeline
	blocks       *sanitize.BlockProcessor
	maxBodyBytes int64
	limiter      *rate.Limiter
}

// NewHandlers creates a new Handlers instance. A nil block processor leaves
// the blocks endpoint unregistered.
func NewHandlers(logger *zap.Logger, p *pipeline.Pipeline, blocks *sanitize.BlockProcessor, maxBodyBytes int64) *Handlers {
	return &Handlers{
		log:          logger.Named("handlers"),
		pipeline:     p,
		blocks:       blocks,
		maxBodyBytes: maxBodyBytes,
	}
}

// rateLimit rejects API requests beyond the configured rate with 429.
func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.log.Warn("Rate limit exceeded", zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "1")
			h.respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterRoutes sets up the routing for the server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	// Health check endpoint (unversioned)
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/optimize", h.HandleOptimize)
		r.Post("/report", h.HandleReport)
		if h.blocks != nil {
			r.Post("/blocks", h.HandleBlock)
		}
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleOptimize returns the optimized markup of the HTML request body.
func (h *Handlers) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	res, ok := h.optimize(w, r)
	if !ok {
		return
	}
	report := reporting.Build("", "", res.Errors)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderErrors, strconv.Itoa(res.Errors.Count()))
	w.Header().Set(HeaderStatus, string(report.Status))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, res.Markup); err != nil {
		h.log.Warn("Failed to write optimized markup", zap.Error(err))
	}
}

// HandleReport optimizes the request body and returns only the diagnostics.
// The optional "source" query parameter names the document in the report.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := h.optimize(w, r)
	if !ok {
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "request"
	}
	h.respondWithSuccess(w, http.StatusOK, reporting.Build(reporting.NewRunID(), source, res.Errors))
}

// HandleBlock rewrites a single rendered block.
func (h *Handlers) HandleBlock(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req BlockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	processor := h.blocks
	if len(req.Attachments) > 0 {
		processor = processor.With(sanitize.WithAttachments(req.Attachments))
	}
	out, err := processor.Render(dom.NewContext(), req.Block)
	if err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondWithSuccess(w, http.StatusOK, BlockResponse{HTML: out})
}

// optimize runs the pipeline on the request body. On failure it has already
// written the error response.
func (h *Handlers) optimize(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	body, ok := h.readBody(w, r)
	if !ok {
		return nil, false
	}

	res, err := h.pipeline.Optimize(r.Context(), body)
	if err != nil {
		var perr *dom.ParseError
		if errors.As(err, &perr) {
			h.respondWithError(w, http.StatusUnprocessableEntity, perr.Error())
			return nil, false
		}
		h.log.Warn("Optimization aborted", zap.Error(err))
		h.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return nil, false
	}

	if n := res.Errors.Count(); n > 0 {
		h.log.Debug("Document optimized with errors", zap.Int("errors", n))
	}
	return res, true
}

// readBody reads the request body up to the configured limit.
func (h *Handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return nil, false
	}
	return body, true
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, Response{Status: "error", Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.respond(w, statusCode, Response{Status: "success", Data: data})
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
