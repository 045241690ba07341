package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Signer produces a caller assertion for one outgoing call.
type Signer interface {
	Sign(endpoint, cmdName string) (string, error)
}

// ClientConfig controls how a Client addresses and waits on calls.
type ClientConfig struct {
	// Prefix namespaces inbox and reply keys.
	Prefix string
	// Source is the caller's identity, copied into every Request.
	Source string
	// CallTimeout bounds the wait for a reply. Zero means 10s.
	CallTimeout time.Duration
	// Signer, when set, attaches an assertion to every Request.
	Signer Signer
	// Now overrides the clock used for Request.SentAt.
	Now func() time.Time
}

// Client sends requests to service inboxes and waits for their replies.
type Client struct {
	rdb redis.UniversalClient
	cfg ClientConfig
}

// NewClient returns a Client that talks through rdb.
func NewClient(rdb redis.UniversalClient, cfg ClientConfig) (*Client, error) {
	if rdb == nil {
		return nil, ErrNilRedis
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{rdb: rdb, cfg: cfg}, nil
}

// Call pushes payload onto the endpoint's inbox and blocks until the reply
// arrives, ctx is done, or the call timeout elapses. A reply with a non-200
// RetCode is returned as a Response, not as an error.
func (c *Client) Call(ctx context.Context, endpoint string, payload Payload) (*Response, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	req := Request{
		ID:      id,
		ReplyTo: ReplyKey(c.cfg.Prefix, id),
		Source:  c.cfg.Source,
		Devices: endpoint,
		SentAt:  c.cfg.Now().UnixMilli(),
		Payload: payload,
	}
	if c.cfg.Signer != nil {
		assertion, err := c.cfg.Signer.Sign(endpoint, payload.CmdName)
		if err != nil {
			return nil, fmt.Errorf("bus: sign request: %w", err)
		}
		req.Assertion = assertion
	}

	raw, err := Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("bus: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if err := c.rdb.LPush(ctx, InboxKey(c.cfg.Prefix, endpoint), raw).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	wait := c.cfg.CallTimeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	if wait <= 0 {
		return nil, ErrCallTimeout
	}

	res, err := c.rdb.BLPop(ctx, wait, req.ReplyTo).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil):
			return nil, ErrCallTimeout
		case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
			return nil, ErrCallTimeout
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected BLPOP reply length %d", ErrTransport, len(res))
	}

	var resp Response
	if err := Unmarshal([]byte(res[1]), &resp); err != nil {
		return nil, fmt.Errorf("bus: decode response: %w", err)
	}
	return &resp, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
