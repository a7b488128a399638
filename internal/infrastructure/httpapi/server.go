// Package httpapi exposes the refresh and the reviewer mutators over HTTP for a presentation layer.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/infrastructure/storage"
	"TenderMonitor/internal/usecase"
)

const dateLayout = "2006-01-02"

// Service is what the handlers need from the pipeline.
type Service interface {
	Refresh(ctx context.Context, req domain.RefreshRequest) (domain.RunResult, error)
	ToggleSaved(ctx context.Context, id string) (domain.LifecycleState, error)
	Hide(ctx context.Context, id string) (domain.LifecycleState, error)
	MarkSeen(ctx context.Context, ids []string) error
	Annotate(ctx context.Context, id, note string) error
	ListSaved(ctx context.Context) ([]domain.SavedEntry, error)
}

// Server is a fiber app bound to a Service.
type Server struct {
	app    *fiber.App
	svc    Service
	loc    *time.Location
	logger *slog.Logger
}

// New registers every route on a fresh fiber app. Dates in queries are read in loc.
func New(svc Service, loc *time.Location, logger *slog.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			// Stores keep ids as map keys, so params must be copies of the request buffer.
			Immutable:             true,
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),
		svc:    svc,
		loc:    loc,
		logger: logger,
	}
	s.app.Use(recover.New())

	s.app.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := s.app.Group("/api")
	api.Get("/candidates", s.candidates)
	api.Get("/saved", s.saved)
	api.Post("/seen", s.markSeen)
	api.Post("/tenders/:id/save", s.toggleSaved)
	api.Post("/tenders/:id/hide", s.hide)
	api.Put("/tenders/:id/note", s.annotate)

	return s
}

// App exposes the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) candidates(c *fiber.Ctx) error {
	from, err := s.parseDate(c.Query("from"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid from: "+err.Error())
	}
	to, err := s.parseDate(c.Query("to"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid to: "+err.Error())
	}
	includeExpired := false
	if raw := c.Query("includeExpired"); raw != "" {
		includeExpired, err = strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid includeExpired")
		}
	}

	result, err := s.svc.Refresh(c.UserContext(), domain.RefreshRequest{
		From:           from,
		To:             to,
		IncludeExpired: includeExpired,
	})
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(result)
}

func (s *Server) toggleSaved(c *fiber.Ctx) error {
	state, err := s.svc.ToggleSaved(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "state": state})
}

func (s *Server) hide(c *fiber.Ctx) error {
	state, err := s.svc.Hide(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "state": state})
}

func (s *Server) annotate(c *fiber.Ctx) error {
	var body struct {
		Note string `json:"note"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	if err := s.svc.Annotate(c.UserContext(), c.Params("id"), body.Note); err != nil {
		return s.fail(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) markSeen(c *fiber.Ctx) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	if err := s.svc.MarkSeen(c.UserContext(), body.IDs); err != nil {
		return s.fail(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) saved(c *fiber.Ctx) error {
	entries, err := s.svc.ListSaved(c.UserContext())
	if err != nil {
		return s.fail(err)
	}
	if entries == nil {
		entries = []domain.SavedEntry{}
	}
	return c.JSON(entries)
}

func (s *Server) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, raw, s.loc)
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidRange), errors.Is(err, usecase.ErrEmptyID):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotSaved):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
