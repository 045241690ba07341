package bus

import (
	"fmt"
	"strings"
)

// Status codes used by the transport itself. Services return their own codes
// in Response.RetCode; these cover failures that never reach a handler.
const (
	CodeOK           = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeInternal     = 500
)

// Payload is the command a caller asks a service to run.
type Payload struct {
	CmdName    string         `cbor:"cmdName" json:"cmdName"`
	CmdCode    string         `cbor:"cmdCode,omitempty" json:"cmdCode,omitempty"`
	Parameters map[string]any `cbor:"parameters,omitempty" json:"parameters,omitempty"`
}

// Request is the envelope pushed onto a service inbox.
type Request struct {
	ID        string  `cbor:"id"`
	ReplyTo   string  `cbor:"replyTo"`
	Source    string  `cbor:"source,omitempty"`
	Assertion string  `cbor:"assertion,omitempty"`
	Devices   string  `cbor:"devices"`
	SentAt    int64   `cbor:"sentAt"`
	Payload   Payload `cbor:"payload"`
}

// Response is the envelope pushed back onto the caller's reply list.
type Response struct {
	ID          string     `cbor:"id,omitempty"`
	RetCode     int        `cbor:"retCode"`
	Description string     `cbor:"description"`
	Data        RawMessage `cbor:"data,omitempty"`
}

// NewResponse builds a Response with data encoded as CBOR. A nil data value
// leaves Data empty.
func NewResponse(code int, description string, data any) (*Response, error) {
	resp := &Response{RetCode: code, Description: description}
	if data == nil {
		return resp, nil
	}
	raw, err := Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("bus: encode response data: %w", err)
	}
	resp.Data = raw
	return resp, nil
}

// ErrorResponse builds a Response that carries no data.
func ErrorResponse(code int, description string) *Response {
	return &Response{RetCode: code, Description: description}
}

// OK reports whether the response carries the success code.
func (r *Response) OK() bool {
	return r != nil && r.RetCode == CodeOK
}

// DecodeData decodes the response data into v. Empty data leaves v untouched.
func (r *Response) DecodeData(v any) error {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	return Unmarshal(r.Data, v)
}

// InboxKey returns the Redis list key a service endpoint reads requests from.
func InboxKey(prefix, endpoint string) string {
	return joinKey(prefix, "inbox", endpoint)
}

// ReplyKey returns the Redis list key a reply for call id is pushed to.
func ReplyKey(prefix, id string) string {
	return joinKey(prefix, "reply", id)
}

func joinKey(prefix, kind, name string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return kind + ":" + name
	}
	return prefix + ":" + kind + ":" + name
}
