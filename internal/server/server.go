// Package server exposes the capture workflow over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/engine"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxImageBytes bounds a decoded image upload.
const maxImageBytes = 8 << 20

// TurnSubmitter runs one conversation turn.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server serves the turn API.
type Server struct {
	echo     *echo.Echo
	turns    TurnSubmitter
	records  service.RecordStore
	logger   *slog.Logger
	validate *validator.Validate
	config   Config
}

// New creates a server. Records may be nil, which disables the record lookup endpoint.
func New(turns TurnSubmitter, records service.RecordStore, logger *slog.Logger, cfg Config) (*Server, error) {
	if turns == nil {
		return nil, fmt.Errorf("%w: turn submitter is required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			return nil
		}
	})

	s := &Server{
		echo:     e,
		turns:    turns,
		records:  records,
		logger:   logger,
		validate: validator.New(),
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/turns", s.handleTurn)
	if s.records != nil {
		v1.GET("/records/:id", s.handleRecord)
	}
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// TurnRequest is the request body for POST /api/v1/turns.
type TurnRequest struct {
	ConversationID string `json:"conversation_id" validate:"omitempty,max=128"`
	UserID         string `json:"user_id" validate:"omitempty,max=128"`
	Content        string `json:"content" validate:"required_without=Image,max=4000"`
	Image          string `json:"image,omitempty" validate:"omitempty,base64"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleTurn(c echo.Context) error {
	var body TurnRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	req := model.TurnRequest{
		ConversationID: body.ConversationID,
		UserID:         body.UserID,
		Content:        body.Content,
		IdempotencyKey: body.IdempotencyKey,
	}
	if body.Image != "" {
		img, err := base64.StdEncoding.DecodeString(body.Image)
		if err != nil || len(img) > maxImageBytes {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image must be base64 and at most 8 MiB"})
		}
		req.Image = img
		req.Kind = model.ContentImage
	}

	resp, err := s.turns.SubmitTurn(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecord(c echo.Context) error {
	id := c.Param("id")
	record, err := s.records.GetRecord(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}

	if c.QueryParam("versions") == "true" {
		versions, err := s.records.GetRecordVersions(c.Request().Context(), id)
		if err != nil {
			return s.writeError(c, err)
		}
		return c.JSON(http.StatusOK, versions)
	}
	return c.JSON(http.StatusOK, record)
}

// writeError maps workflow errors onto status codes. Retryable failures advertise Retry-After.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidTurn):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case common.IsRetryable(err):
		s.logger.Warn("turn failed, client may retry", "error", err)
		c.Response().Header().Set("Retry-After", strconv.Itoa(1))
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable", Retryable: true})
	default:
		s.logger.Error("request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
