// Package server exposes the assistant and the chat sessions over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nutrivision"
	"nutrivision/chat"
	"nutrivision/pipeline"
	"nutrivision/recognition"
)

// HeaderUserID carries the caller's identity.
const HeaderUserID = "X-User-ID"

const (
	userIDKey = "userID"

	defaultMaxImageBytes = 10 << 20
	defaultOrigin        = "http://localhost:5173"
)

type Options struct {
	Assistant pipeline.Responder
	Store     chat.Store
	// Recognizer backs POST /recognize; nil disables it.
	Recognizer          pipeline.Recognizer
	AllowedOrigins      []string
	MaxImageBytes       int64
	ConfidenceThreshold float64
	Tracer              trace.Tracer
}

type Server struct {
	assistant     pipeline.Responder
	store         chat.Store
	recognizer    pipeline.Recognizer
	maxImageBytes int64
	threshold     float64
	tracer        trace.Tracer
}

// NewRouter wires the routes. Everything except the health check requires
// the X-User-ID header.
func NewRouter(opts Options) *gin.Engine {
	s := &Server{
		assistant:     opts.Assistant,
		store:         opts.Store,
		recognizer:    opts.Recognizer,
		maxImageBytes: opts.MaxImageBytes,
		threshold:     opts.ConfidenceThreshold,
		tracer:        opts.Tracer,
	}
	if s.maxImageBytes <= 0 {
		s.maxImageBytes = defaultMaxImageBytes
	}
	if s.threshold <= 0 {
		s.threshold = recognition.DefaultConfidenceThreshold
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(nutrivision.TracerNameServer)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{defaultOrigin}
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.traceRequests())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", HeaderUserID},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	protected := router.Group("/")
	protected.Use(requireUser())
	protected.POST("/chats", s.createChat)
	protected.GET("/chats", s.listChats)
	protected.GET("/chats/:chatId", s.getChat)
	protected.DELETE("/chats/:chatId", s.deleteChat)
	protected.POST("/chat", s.chat)
	protected.POST("/recognize", s.recognize)

	return router
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			respondError(c, http.StatusBadRequest, "missing_user", pipeline.ErrMissingUser)
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(), trace.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// respondFailure maps pipeline and store errors to a status. Upstream and
// internal details are logged, not returned.
func respondFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrMissingUser), errors.Is(err, pipeline.ErrEmptyMessage):
		respondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, chat.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pipeline.ErrUpstream):
		slog.Error("SERVER: Upstream failure", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusBadGateway, "upstream", errors.New("could not get a response"))
	case errors.Is(err, context.Canceled):
		respondError(c, 499, "canceled", err)
	default:
		slog.Error("SERVER: Request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
