// Package api maps the todo REST routes onto a todo.Store.
package api

import (
	"net/http"

	"github.com/jaxxstorm/atlastodo/internal/todo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Handler struct {
	store  todo.Store
	logger *zap.Logger
}

func NewHandler(store todo.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger.With(zap.String("component", "api"))}
}

// NewServer returns an echo instance with every route, the error handler and
// request logging installed.
func NewServer(store todo.Store, logger *zap.Logger) *echo.Echo {
	h := NewHandler(store, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.HandleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	h.Register(e)
	return e
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/api/todos", h.ListTodos)
	e.POST("/api/todos", h.CreateTodo)
	e.GET("/api/todos/:id", h.GetTodo)
	e.PUT("/api/todos/:id", h.UpdateTodo)
	e.DELETE("/api/todos/:id", h.DeleteTodo)
	e.GET("/api/test-connection", h.TestConnection)
}

// ListTodos (GET /api/todos) returns every todo, newest first.
func (h *Handler) ListTodos(c echo.Context) error {
	todos, err := h.store.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Response{Success: true, Data: todos})
}

// CreateTodo (POST /api/todos) accepts {title, ttl} and answers 201 with the new record.
func (h *Handler) CreateTodo(c echo.Context) error {
	var req createRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	created, err := h.store.Create(c.Request().Context(), todo.CreateInput{
		Title:      req.Title,
		TTLSeconds: req.TTL.value(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

func (h *Handler) GetTodo(c echo.Context) error {
	found, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Response{Success: true, Data: found})
}

// UpdateTodo (PUT /api/todos/:id) changes only the fields present in the body.
func (h *Handler) UpdateTodo(c echo.Context) error {
	id := c.Param("id")
	if _, err := todo.ParseID(id); err != nil {
		return err
	}
	var req updateRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := h.store.Update(c.Request().Context(), id, todo.UpdateInput{
		Title:      req.Title,
		Completed:  req.Completed,
		TTLSeconds: req.TTL.value(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

func (h *Handler) DeleteTodo(c echo.Context) error {
	deleted, err := h.store.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Response{Success: true, Data: deleted})
}

// TestConnection (GET /api/test-connection) reports whether the backing store answers a ping.
func (h *Handler) TestConnection(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		h.logger.Warn("store ping failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Message: "Database Connection Failed",
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, Response{Success: true, Message: "Database Connected Successfully"})
}
