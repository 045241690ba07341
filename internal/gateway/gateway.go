// Package gateway exposes the engine commands over HTTP with gin.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authcenter"
	"github.com/MrEthical07/authcenter/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the caller's correlation id, echoed on the response.
const RequestIDHeader = "X-Request-ID"

// Engine is the subset of *authcenter.Engine the gateway needs.
type Engine interface {
	Execute(ctx context.Context, cmdName string, msg map[string]any) authcenter.Result
	CheckToken(ctx context.Context, token string) (*authcenter.TokenStatus, error)
}

// Options configure NewRouter.
type Options struct {
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter returns a gin engine serving the auth API.
func NewRouter(engine Engine, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/ping", Ping)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := router.Group("/api/v1/auth")
	api.POST("/login", command(engine, authcenter.CommandLogin))
	api.POST("/checkToken", command(engine, authcenter.CommandCheckToken))
	api.GET("/me", guarded(middleware.Guard(engine), Me))

	return router
}

// Ping is the liveness endpoint.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Me reports the record uuid behind the bearer token.
func Me(c *gin.Context) {
	status, ok := middleware.TokenStatusFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uuid":      status.UUID,
		"issuedAt":  status.IssuedAt.UnixMilli(),
		"expiresAt": status.ExpiresAt.UnixMilli(),
		"refreshed": status.Refreshed,
	})
}

func command(engine Engine, cmdName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		var msg map[string]any
		if err := c.ShouldBindJSON(&msg); err != nil {
			writeResult(c, authcenter.Result{
				RetCode:     authcenter.CodeSchemaInvalid,
				Description: authcenter.Describe(authcenter.CodeSchemaInvalid),
				Data:        map[string]any{},
			})
			return
		}

		ctx := authcenter.WithRequestID(c.Request.Context(), requestID)
		ctx = authcenter.WithClientIP(ctx, c.ClientIP())
		writeResult(c, engine.Execute(ctx, cmdName, msg))
	}
}

func writeResult(c *gin.Context, res authcenter.Result) {
	c.JSON(StatusFor(res.RetCode), res)
}

// StatusFor maps a result code to an HTTP status. Codes the engine does not
// own come from the registry and map to 502.
func StatusFor(code int) int {
	switch code {
	case authcenter.CodeSuccess:
		return http.StatusOK
	case authcenter.CodeSchemaInvalid, authcenter.CodeUnknownCommand:
		return http.StatusBadRequest
	case authcenter.CodeInvalidCredentials, authcenter.CodeInvalidToken:
		return http.StatusUnauthorized
	case authcenter.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// guarded runs h behind a net/http middleware.
func guarded(mw func(http.Handler) http.Handler, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			c.Request = r
			h(c)
		})).ServeHTTP(c.Writer, c.Request)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogAttrs(c.Request.Context(), slog.LevelDebug, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
