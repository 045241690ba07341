package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcenter/bus"
)

// Caller sends one payload to a registry endpoint and returns its reply.
// *bus.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, endpoint string, payload bus.Payload) (*bus.Response, error)
}

// Config names the registry service and the user category tag.
type Config struct {
	// Service is the resolver key for the registry, e.g. "services.device_manager".
	Service string
	// UserTypeID is the type.id value that marks user records.
	UserTypeID string
}

// Client issues typed registry commands.
type Client struct {
	caller   Caller
	resolver Resolver
	cfg      Config
}

// NewClient returns a Client. Both caller and resolver are required.
func NewClient(caller Caller, resolver Resolver, cfg Config) (*Client, error) {
	if caller == nil {
		return nil, errors.New("registry: nil caller")
	}
	if resolver == nil {
		return nil, errors.New("registry: nil resolver")
	}
	if strings.TrimSpace(cfg.Service) == "" {
		return nil, errors.New("registry: empty service name")
	}
	return &Client{caller: caller, resolver: resolver, cfg: cfg}, nil
}

// FindUser looks a user record up by phone number. The bool result is false
// when no record matched.
func (c *Client) FindUser(ctx context.Context, phoneNumber string) (Device, bool, error) {
	return c.getOne(ctx, map[string]any{
		FieldTypeID:      c.cfg.UserTypeID,
		FieldPhoneNumber: phoneNumber,
	})
}

// GetDevice looks a record up by uuid. The bool result is false when no
// record matched.
func (c *Client) GetDevice(ctx context.Context, uuid string) (Device, bool, error) {
	return c.getOne(ctx, map[string]any{
		FieldUUID: uuid,
	})
}

// SetAuthToken replaces the whole authToken field on the record.
func (c *Client) SetAuthToken(ctx context.Context, uuid string, token AuthToken) error {
	return c.update(ctx, uuid, map[string]any{
		FieldAuthToken: map[string]any{
			"token":     token.Token,
			"timestamp": token.Timestamp,
		},
	})
}

// TouchAuthToken moves only the authToken timestamp to at.
func (c *Client) TouchAuthToken(ctx context.Context, uuid string, at time.Time) error {
	return c.update(ctx, uuid, map[string]any{
		FieldAuthTokenTimestamp: at.UnixMilli(),
	})
}

func (c *Client) getOne(ctx context.Context, params map[string]any) (Device, bool, error) {
	resp, err := c.call(ctx, bus.Payload{
		CmdName:    CmdGetDevice,
		CmdCode:    CodeGetDevice,
		Parameters: params,
	})
	if err != nil {
		return Device{}, false, err
	}

	// Only the first record is used; the rest are never decoded.
	var records []bus.RawMessage
	if err := resp.DecodeData(&records); err != nil {
		return Device{}, false, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(records) == 0 {
		return Device{}, false, nil
	}
	var doc map[string]any
	if err := bus.Unmarshal(records[0], &doc); err != nil {
		return Device{}, false, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return DeviceFromDocument(doc), true, nil
}

func (c *Client) update(ctx context.Context, uuid string, fields map[string]any) error {
	params := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		params[k] = v
	}
	params[FieldUUID] = uuid

	_, err := c.call(ctx, bus.Payload{
		CmdName:    CmdDeviceUpdate,
		CmdCode:    CodeDeviceUpdate,
		Parameters: params,
	})
	return err
}

func (c *Client) call(ctx context.Context, payload bus.Payload) (*bus.Response, error) {
	endpoint, err := c.resolver.Pick(c.cfg.Service)
	if err != nil {
		return nil, err
	}

	resp, err := c.caller.Call(ctx, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, payload.CmdName, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s: empty reply", ErrUnavailable, payload.CmdName)
	}
	if !resp.OK() {
		return nil, &Error{Code: resp.RetCode, Description: resp.Description}
	}
	return resp, nil
}
