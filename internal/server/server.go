package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"chefmate/internal/chat"
	"chefmate/internal/config"
	"chefmate/internal/models"
	"chefmate/internal/quickreply"
	"chefmate/internal/router"
	"chefmate/internal/stream"
	"chefmate/internal/translator"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeGracePeriod    = 15 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	router  *router.Router
	chat    *chat.Orchestrator
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rt *router.Router, orchestrator *chat.Orchestrator) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}
	if orchestrator == nil {
		return nil, errors.New("chat orchestrator must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	if len(cfg.Server.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  cfg.Server.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderContentType},
			ExposeHeaders: []string{stream.HeaderName},
		}))
	}
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		router:  rt,
		chat:    orchestrator,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address, "default_provider", s.router.DefaultProvider())

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: s.cfg.Server.RequestTimeout + writeGracePeriod,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/api/models", s.handleModels)
	s.app.POST("/api/chat", s.handleChat)
	s.app.POST("/api/chat/cancel", s.handleCancel)
	s.app.POST("/api/quick-replies", s.handleQuickReplies)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type modelsResponse struct {
	DefaultProvider string         `json:"defaultProvider"`
	Models          []models.Model `json:"models"`
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, modelsResponse{
		DefaultProvider: s.router.DefaultProvider(),
		Models:          s.router.Models(),
	})
}

// handleChat streams one conversation turn. Errors raised before the first
// frame become JSON error responses; later ones become an error frame.
func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatRequest
	if err := decodeRequestBody(c, s.cfg.Server.MaxBodyBytes, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	res := c.Response()
	out := stream.NewWriter(res)

	emit := func(ev models.StreamEvent) error {
		if !res.Committed {
			header := res.Header()
			header.Set(echo.HeaderContentType, stream.ContentType)
			header.Set(stream.HeaderName, stream.HeaderValue)
			header.Set("Cache-Control", "no-cache")
			header.Set("Connection", "keep-alive")
			res.WriteHeader(http.StatusOK)
		}
		return out.Write(ev)
	}

	result, err := s.chat.Converse(ctx, chat.ConverseRequest{Messages: req.Messages, Model: req.Model}, emit)
	if err != nil {
		if !res.Committed {
			return toHTTPError(err)
		}
		slog.Error("chat turn failed after streaming started", "model", req.Model, "err", err)
		if ctx.Err() == nil {
			if werr := out.Write(models.StreamEvent{Type: models.EventError, Text: streamErrorMessage(err)}); werr != nil {
				slog.Error("failed to write error frame", "err", werr)
			}
		}
		return nil
	}

	slog.Info("chat turn finished",
		"model", result.Model.ID,
		"provider", result.Model.Provider,
		"steps", result.Steps,
		"finish_reason", result.FinishReason,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)
	return nil
}

type cancelResponse struct {
	Messages  []models.Message `json:"messages"`
	Cancelled int              `json:"cancelled"`
}

func (s *Server) handleCancel(c echo.Context) error {
	var req translator.CancelRequest
	if err := decodeRequestBody(c, s.cfg.Server.MaxBodyBytes, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalidRequest(err.Error())
	}

	messages, cancelled := chat.CancelPendingToolCalls(req.Messages)
	return c.JSON(http.StatusOK, cancelResponse{Messages: messages, Cancelled: cancelled})
}

type quickRepliesResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleQuickReplies(c echo.Context) error {
	var req translator.QuickRepliesRequest
	if err := decodeRequestBody(c, s.cfg.Server.MaxBodyBytes, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalidRequest(err.Error())
	}

	return c.JSON(http.StatusOK, quickRepliesResponse{
		Suggestions: quickreply.ForConversation(req.Messages, req.Generating),
	})
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("chefmate ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/models")
	fmt.Println("  POST /api/chat")
	fmt.Println("  POST /api/chat/cancel")
	fmt.Println("  POST /api/quick-replies")
	fmt.Printf("Example:\n  curl -N http://%s:%d/api/chat -H 'Content-Type: application/json' -d '{\"messages\":[{\"role\":\"user\",\"content\":\"Show me Italian recipes\"}],\"data\":{\"model\":\"gemini-2.5-flash\"}}'\n\n", host, port)
}
