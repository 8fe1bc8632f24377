// Package api exposes the HTTP surface of the crawl service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/metrics"
	"github.com/crawlkit/crawld/internal/service"
)

const notFoundMessage = "Crawl ID not found."

// Server wires the crawl service into a chi router.
type Server struct {
	service  *service.Service
	cfg      config.Config
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer constructs a Server.
func NewServer(svc *service.Service, cfg config.Config, logger *zap.Logger) *Server {
	return &Server{
		service:  svc,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the HTTP routing table with the full middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.Auth.Enabled {
			r.Use(s.apiKeyAuth)
		}
		r.Post("/crawl", s.handleCrawl)
		r.Get("/recrawl/{crawl_id}", s.handleRecrawl)
		r.Get("/status/{crawl_id}", s.handleStatus)
	})

	return r
}

type crawlRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "urls must be a non-empty list of URLs")
		return
	}

	ids, err := s.service.Submit(r.Context(), req.URLs)
	if err != nil {
		if errors.Is(err, crawl.ErrEmptyURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("crawl submission failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit crawl")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"crawl_ids": strings.Join(ids, ",")})
}

func (s *Server) handleRecrawl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "crawl_id")

	crawlID, err := s.service.Recrawl(r.Context(), id)
	if err != nil {
		if errors.Is(err, crawl.ErrNotFound) {
			writeError(w, http.StatusNotFound, notFoundMessage)
			return
		}
		s.logger.Error("recrawl failed", zap.String("crawl_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit recrawl")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"crawl_ids": crawlID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "crawl_id")

	view, err := s.service.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, crawl.ErrNotFound) {
			writeError(w, http.StatusNotFound, notFoundMessage)
			return
		}
		s.logger.Error("status lookup failed", zap.String("crawl_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to look up status")
		return
	}

	body := map[string]string{"status": string(view.Status)}
	if view.Status == crawl.StatusComplete {
		body["html"] = view.ArtifactRef
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.cfg.Auth.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// requestID assigns a UUID request id unless the caller provided one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.RequestIDHeader) == "" {
			r.Header.Set(middleware.RequestIDHeader, uuid.NewString())
		}
		middleware.RequestID(next).ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
