package authcenter

import (
	"context"

	"github.com/MrEthical07/authcenter/bus"
)

// ServeMessage adapts a bus request to Handle so the engine can be mounted
// on a bus.Server inbox. The reply carries the Result data as its payload.
func (e *Engine) ServeMessage(ctx context.Context, req *bus.Request) *bus.Response {
	if req == nil {
		return bus.ErrorResponse(bus.CodeBadRequest, "Empty request.")
	}
	ctx = WithRequestID(ctx, req.ID)

	var out *bus.Response
	e.Handle(ctx, req.Payload.CmdName, req.Payload.Parameters, func(r Result) {
		resp, err := bus.NewResponse(r.RetCode, r.Description, r.Data)
		if err != nil {
			e.logger.ErrorContext(ctx, "encode reply failed", "op", req.Payload.CmdName, "error", err)
			resp = bus.ErrorResponse(CodeInternal, Describe(CodeInternal))
		}
		out = resp
	})
	return out
}
