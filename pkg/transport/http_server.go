package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"

	fiber "github.com/gofiber/fiber/v3"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/sentinel"
)

const (
	httpReadTimeout  = 5 * time.Second
	httpWriteTimeout = 5 * time.Second
)

// HTTPServer exposes a node's Handler over HTTP JSON.
type HTTPServer struct {
	app     *fiber.App
	ln      net.Listener
	addr    string
	handler Handler
}

// NewHTTPServer creates an HTTP server for the given handler.
func NewHTTPServer(addr string, handler Handler) *HTTPServer {
	app := fiber.New(fiber.Config{ReadTimeout: httpReadTimeout, WriteTimeout: httpWriteTimeout})

	return &HTTPServer{app: app, addr: addr, handler: handler}
}

// Addr returns the bound listen address (valid after Start).
func (s *HTTPServer) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}

	return s.addr
}

// Start binds the listener and begins serving in the background.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.routes(ctx)

	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ewrap.Wrap(err, "transport http listen")
	}

	s.ln = ln

	go func() {
		err = s.app.Listener(ln)
		if err != nil {
			return
		}
	}()

	return nil
}

// Stop shuts the server down, honoring the context deadline.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s == nil || s.ln == nil {
		return nil
	}

	ch := make(chan error, 1)

	go func() { ch <- s.app.Shutdown() }()

	select {
	case <-ctx.Done():
		return sentinel.ErrTimeoutOrCanceled
	case err := <-ch:
		return err
	}
}

func (s *HTTPServer) routes(ctx context.Context) {
	// POST /internal/cache/set
	// body: httpSetRequest; Replicate=false means primary write, true means replica apply
	s.app.Post("/internal/cache/set", func(fctx fiber.Ctx) error {
		var req httpSetRequest

		err := json.Unmarshal(fctx.Body(), &req)
		if err != nil || req.Item == nil {
			return fctx.Status(fiber.StatusBadRequest).JSON(httpSetResponse{Error: "invalid body"})
		}

		if req.Replicate {
			err = s.handler.HandleReplicate(ctx, req.Item)
		} else {
			err = s.handler.HandleSet(ctx, req.Item)
		}

		if err != nil {
			return fctx.Status(statusForError(err)).JSON(httpSetResponse{Error: err.Error()})
		}

		return fctx.JSON(httpSetResponse{})
	})

	s.app.Get("/internal/cache/get", func(fctx fiber.Ctx) error {
		key := fctx.Query("key")
		if key == "" {
			return fctx.Status(fiber.StatusBadRequest).JSON(httpGetResponse{Error: "missing key"})
		}

		item, ok, err := s.handler.HandleGet(ctx, key)
		if err != nil {
			return fctx.Status(statusForError(err)).JSON(httpGetResponse{Error: err.Error()})
		}

		return fctx.JSON(httpGetResponse{Found: ok, Item: item})
	})

	s.app.Delete("/internal/cache/remove", func(fctx fiber.Ctx) error {
		var req httpRemoveRequest

		err := json.Unmarshal(fctx.Body(), &req)
		if err != nil || req.Key == "" {
			return fctx.Status(fiber.StatusBadRequest).JSON(httpSetResponse{Error: "invalid body"})
		}

		if req.Replicate {
			err = s.handler.HandleReplicateRemove(ctx, req.Key, req.Sequence, req.Origin)
		} else {
			err = s.handler.HandleRemove(ctx, req.Key)
		}

		if err != nil {
			return fctx.Status(statusForError(err)).JSON(httpSetResponse{Error: err.Error()})
		}

		return fctx.JSON(httpSetResponse{})
	})

	s.app.Get("/internal/cache/resync", func(fctx fiber.Ctx) error {
		items, err := s.handler.HandleResync(ctx)
		if err != nil {
			return fctx.Status(statusForError(err)).JSON(httpResyncResponse{Error: err.Error()})
		}

		return fctx.JSON(httpResyncResponse{Items: items})
	})

	s.app.Get("/health", func(fctx fiber.Ctx) error {
		from := cluster.Node{
			ID:      cluster.NodeID(fctx.Query("from")),
			Address: fctx.Query("addr"),
			State:   cluster.NodeAlive,
		}

		err := s.handler.HandleHeartbeat(ctx, from)
		if err != nil {
			return fctx.SendStatus(fiber.StatusServiceUnavailable)
		}

		return fctx.SendString("ok")
	})
}

// statusForError maps sentinel errors onto HTTP statuses the client converts back.
func statusForError(err error) int {
	switch {
	case errors.Is(err, sentinel.ErrStalePrimary):
		return fiber.StatusConflict
	case errors.Is(err, sentinel.ErrSequenceReplayed):
		return fiber.StatusPreconditionFailed
	case errors.Is(err, sentinel.ErrKeyNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, sentinel.ErrInsufficientNodes), errors.Is(err, sentinel.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
