package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/castor/internal/logger"
	"github.com/samcharles93/castor/internal/session"
)

// Server exposes the session controller over HTTP. The session is single
// and not reentrant, so generation requests are serialized with a mutex:
// a second request blocks until the first finishes.
type Server struct {
	ctrl *session.Controller
	log  logger.Logger
	mu   sync.Mutex
}

func NewServer(ctrl *session.Controller, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{ctrl: ctrl, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/health", s.handleHealth)
	e.POST("/v1/generate", s.handleGenerate)
	e.POST("/v1/tokenize", s.handleTokenize)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.ctrl.State().String(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "prompt is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := "gen-" + uuid.NewString()
	ctx := c.Request().Context()

	if req.Stream {
		sse, err := NewSSEWriter(c, id)
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
		}
		res, genErr := s.ctrl.GenerateStream(ctx, req.toSession(), func(chunk string) error {
			return sse.Delta(chunk)
		})
		if genErr != nil && res == nil {
			return s.mapError(c, genErr)
		}
		if genErr != nil {
			s.log.Error("stream generation failed", "id", id, "err", genErr)
		}
		return sse.Done(toGenerateResponse(id, res))
	}

	res, genErr := s.ctrl.Generate(ctx, req.toSession())
	if genErr != nil && res == nil {
		return s.mapError(c, genErr)
	}
	if genErr != nil {
		// Decode failed mid-generation: the partial text is still
		// returned, flagged by its stop reason.
		s.log.Error("generation failed", "id", id, "err", genErr)
	}
	return c.JSON(http.StatusOK, toGenerateResponse(id, res))
}

func (s *Server) handleTokenize(c *echo.Context) error {
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	ids, err := s.ctrl.Tokenize(req.Text)
	if err != nil {
		return s.mapError(c, err)
	}
	if ids == nil {
		ids = []int32{}
	}
	return c.JSON(http.StatusOK, TokenizeResponse{Tokens: ids, Count: len(ids)})
}

func (s *Server) mapError(c *echo.Context, err error) error {
	if errors.Is(err, session.ErrModelUnavailable) {
		return writeError(c, http.StatusServiceUnavailable, "model_unavailable", err.Error())
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: msg, Type: errType},
	})
}
