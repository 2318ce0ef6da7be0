// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
	"github.com/aititan/deepseek-agent/core"
	"github.com/aititan/deepseek-agent/deepseek"
)

// Config holds server options.
type Config struct {
	// AccessLog receives one line per request; nil disables access
	// logging.
	AccessLog io.Writer
}

// Server serves the agent's operations over HTTP.
type Server struct {
	app   *fiber.App
	agent *core.Agent
}

// AskRequest is the body of POST /deepseek.
type AskRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Sysmsg      string   `json:"sysmsg"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// AskResponse is the body returned by POST /deepseek.
type AskResponse struct {
	Text string `json:"text"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Description string           `json:"description"`
	Components  []core.Component `json:"components"`
	Model       string           `json:"model"`
}

// ModelInfo is one entry of GET /models.
type ModelInfo struct {
	Name        string `json:"name"`
	TokenLimit  int    `json:"token_limit"`
	Description string `json:"description"`
	Upstream    string `json:"upstream"`
	Default     bool   `json:"default"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a Server for agent.
func New(agent *core.Agent, cfg Config) *Server {
	s := &Server{agent: agent}
	app := fiber.New(fiber.Config{
		AppName:               "deepseek-agent",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: cfg.AccessLog}))
	}
	app.Use(cors.New())

	app.Get("/healthz", s.healthz)
	app.Get("/models", s.models)
	app.Post("/deepseek", s.ask)
	app.Post("/generate", s.generate)
	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is done.
func (s *Server) Listen(ctx context.Context, addr string) (err error) {
	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listen(addr)
	}()
	select {
	case err = <-errc:
		return
	case <-ctx.Done():
		Debug("shutting down server on %s", addr)
		err = s.app.Shutdown()
		if err != nil {
			return
		}
		return <-errc
	}
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) models(c *fiber.Ctx) error {
	models := s.agent.Models()
	list := []ModelInfo{}
	for _, m := range models.ListModels() {
		list = append(list, ModelInfo{
			Name:        m.Name,
			TokenLimit:  m.TokenLimit,
			Description: m.Description,
			Upstream:    m.UpstreamName(),
			Default:     m.Name == models.Default,
		})
	}
	return c.JSON(list)
}

func (s *Server) ask(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing prompt")
	}
	text, err := s.agent.Ask(c.UserContext(), client.Request{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Sysmsg:      req.Sysmsg,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return err
	}
	return c.JSON(AskResponse{Text: text})
}

func (s *Server) generate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	res, err := s.agent.CreateApp(c.UserContext(), req.Description, req.Components, client.Request{Model: req.Model})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// StatusFor returns the HTTP status used to report err.
func StatusFor(err error) int {
	var fe *fiber.Error
	var tle *core.TokenLimitError
	var authErr *deepseek.AuthenticationError
	var netErr *deepseek.NetworkError
	var badErr *deepseek.MalformedResponseError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, deepseek.ErrEmptyPrompt), errors.As(err, &tle):
		return fiber.StatusBadRequest
	case errors.As(err, &authErr):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &netErr), errors.As(err, &badErr):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	Debug("request %s %s failed with %d: %v", c.Method(), c.Path(), code, err)
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
