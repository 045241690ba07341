package authcenter

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/authcenter/registry"
)

// Command names served by Handle.
const (
	CommandLogin      = "login"
	CommandCheckToken = "checkToken"
)

// PeerCallback receives the single reply for a request.
type PeerCallback func(Result)

// Handle runs cmdName with msg and invokes reply exactly once, including when
// the operation panics.
func (e *Engine) Handle(ctx context.Context, cmdName string, msg map[string]any, reply PeerCallback) {
	var once sync.Once
	send := func(r Result) {
		once.Do(func() {
			if reply != nil {
				reply(r)
			}
		})
	}
	send(e.Execute(ctx, cmdName, msg))
}

// Execute runs cmdName with msg and returns its envelope.
func (e *Engine) Execute(ctx context.Context, cmdName string, msg map[string]any) (res Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			e.metricInc(MetricHandlerPanic)
			if e != nil && e.logger != nil {
				e.logger.ErrorContext(ctx, "operation panic", "op", cmdName, "panic", fmt.Sprint(r))
			}
			res = failure(CodeInternal, "")
		}
	}()

	if e == nil {
		return resultFor(ErrEngineNotReady)
	}

	switch cmdName {
	case CommandLogin:
		return e.executeLogin(ctx, msg)
	case CommandCheckToken:
		return e.executeCheckToken(ctx, msg)
	default:
		e.metricInc(MetricUnknownCommand)
		e.logger.WarnContext(ctx, "unknown command", "op", cmdName)
		return resultFor(ErrUnknownCommand)
	}
}

func (e *Engine) executeLogin(ctx context.Context, msg map[string]any) Result {
	var req loginRequest
	if err := decodeMessage(msg, &req); err != nil {
		return e.rejectSchema(ctx, CommandLogin, err)
	}

	token, err := e.Login(ctx, *req.UserName, *req.Password)
	if err != nil {
		return e.failed(ctx, CommandLogin, err)
	}
	return success(map[string]any{"token": token})
}

func (e *Engine) executeCheckToken(ctx context.Context, msg map[string]any) Result {
	var req checkTokenRequest
	if err := decodeMessage(msg, &req); err != nil {
		return e.rejectSchema(ctx, CommandCheckToken, err)
	}

	status, err := e.CheckToken(ctx, *req.Token)
	if err != nil {
		return e.failed(ctx, CommandCheckToken, err)
	}
	return success(map[string]any{"uuid": status.UUID})
}

func (e *Engine) rejectSchema(ctx context.Context, op string, err error) Result {
	e.metricInc(MetricSchemaRejected)
	e.logger.DebugContext(ctx, "schema rejected", "op", op, "error", err)
	e.emitAudit(ctx, auditEventSchemaRejected, false, "", err, func() map[string]string {
		return map[string]string{
			"op": op,
		}
	})
	return resultFor(err)
}

func (e *Engine) failed(ctx context.Context, op string, err error) Result {
	res := resultFor(err)
	if regErr, ok := registry.AsError(err); ok {
		e.logger.WarnContext(ctx, "registry rejected command", "op", op, "code", regErr.Code, "description", regErr.Description)
	} else if res.RetCode == CodeRegistryUnavailable || res.RetCode == CodeInternal {
		e.logger.ErrorContext(ctx, "operation failed", "op", op, "code", res.RetCode, "error", err)
	}
	return res
}
