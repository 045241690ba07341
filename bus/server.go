package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler runs one request and returns the reply envelope.
type Handler interface {
	ServeMessage(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// ServeMessage calls f(ctx, req).
func (f HandlerFunc) ServeMessage(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Verifier checks a request assertion and returns the authenticated caller.
type Verifier interface {
	Verify(assertion, endpoint, cmdName string) (string, error)
}

// ServerConfig controls one inbox consumer.
type ServerConfig struct {
	Prefix   string
	Endpoint string
	// PollInterval bounds each BLPOP so shutdown is noticed. Zero means 1s.
	PollInterval time.Duration
	// ReplyTTL expires reply lists nobody collected. Zero means 1m.
	ReplyTTL time.Duration
	// HandlerTimeout bounds each request. Handlers keep running past Serve's
	// cancellation until they finish or this expires. Zero means 30s.
	HandlerTimeout time.Duration
	// Verifier, when set, rejects requests without a valid assertion.
	Verifier Verifier
	Logger   *slog.Logger
}

// Server drains an endpoint inbox and dispatches requests to a Handler.
type Server struct {
	rdb     redis.UniversalClient
	cfg     ServerConfig
	handler Handler
	logger  *slog.Logger

	active sync.WaitGroup
}

// NewServer returns a Server for cfg.Endpoint.
func NewServer(rdb redis.UniversalClient, cfg ServerConfig, handler Handler) (*Server, error) {
	if rdb == nil {
		return nil, ErrNilRedis
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ReplyTTL <= 0 {
		cfg.ReplyTTL = time.Minute
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		rdb:     rdb,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "bus", "endpoint", cfg.Endpoint),
	}, nil
}

// Serve consumes the inbox until ctx is cancelled, then waits for in-flight
// requests to finish replying. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	key := InboxKey(s.cfg.Prefix, s.cfg.Endpoint)
	s.logger.InfoContext(ctx, "serving inbox", "key", key)

	defer s.active.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := s.rdb.BLPop(ctx, s.cfg.PollInterval, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WarnContext(ctx, "inbox pop failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.PollInterval):
			}
			continue
		}
		if len(res) != 2 {
			continue
		}

		s.active.Add(1)
		go func(raw string) {
			defer s.active.Done()
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HandlerTimeout)
			defer cancel()
			s.handle(hctx, raw)
		}(res[1])
	}
}

func (s *Server) handle(ctx context.Context, raw string) {
	var req Request
	if err := Unmarshal([]byte(raw), &req); err != nil {
		s.logger.WarnContext(ctx, "dropping undecodable request", "error", err)
		return
	}
	if req.ReplyTo == "" {
		s.logger.WarnContext(ctx, "dropping request without reply key", "id", req.ID)
		return
	}

	resp := s.dispatch(ctx, &req)
	resp.ID = req.ID

	data, err := Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode response failed", "id", req.ID, "error", err)
		data, _ = Marshal(&Response{ID: req.ID, RetCode: CodeInternal, Description: "Internal error."})
	}

	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	pipe := s.rdb.TxPipeline()
	pipe.RPush(replyCtx, req.ReplyTo, data)
	pipe.Expire(replyCtx, req.ReplyTo, s.cfg.ReplyTTL)
	if _, err := pipe.Exec(replyCtx); err != nil {
		s.logger.ErrorContext(ctx, "reply push failed", "id", req.ID, "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "handler panic", "id", req.ID, "cmd", req.Payload.CmdName, "panic", fmt.Sprint(r))
			resp = ErrorResponse(CodeInternal, "Internal error.")
		}
	}()

	if s.cfg.Verifier != nil {
		caller, err := s.cfg.Verifier.Verify(req.Assertion, s.cfg.Endpoint, req.Payload.CmdName)
		if err != nil {
			s.logger.WarnContext(ctx, "rejected request assertion", "id", req.ID, "source", req.Source, "error", err)
			return ErrorResponse(CodeUnauthorized, "Unauthorized.")
		}
		ctx = WithCaller(ctx, caller)
	} else if req.Source != "" {
		ctx = WithCaller(ctx, req.Source)
	}

	resp = s.handler.ServeMessage(ctx, req)
	if resp == nil {
		resp = ErrorResponse(CodeInternal, "Internal error.")
	}
	return resp
}

type callerContextKey struct{}

// WithCaller attaches the calling service identity to ctx.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the calling service identity set by the Server.
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	caller, _ := ctx.Value(callerContextKey{}).(string)
	return caller
}
