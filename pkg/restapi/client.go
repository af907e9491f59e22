// Package restapi is the thin client for the REST collaborator (history
// fetch, send, reactions). It does not interpret payloads beyond decoding;
// shape tolerance and reconciliation live upstream.
package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"heartlink/pkg/models"
)

// ErrNetwork wraps transport-level failures so callers can classify them
// without inspecting fasthttp internals.
var ErrNetwork = errors.New("network error")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

const defaultTimeout = 10 * time.Second

// Client talks to the REST collaborator. Safe for concurrent use.
type Client struct {
	base    string
	timeout time.Duration
	hc      *fasthttp.Client
}

// New returns a client for the given base URL. timeout <= 0 selects the
// default.
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		hc:      &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
	}
}

// SendRequest is the POST messages payload.
type SendRequest struct {
	SenderID      string `json:"senderId"`
	ReceiverID    string `json:"receiverId"`
	Content       string `json:"content,omitempty"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
	// TempID lets a cooperative backend echo the placeholder id back on
	// the push channel; backends may ignore it.
	TempID string `json:"tempId,omitempty"`
}

// FetchMessages returns the raw history payload for the (me, peer) pair.
// The response shape is not contractually fixed, so decoding is left to the
// history loader.
func (c *Client) FetchMessages(ctx context.Context, me, peer string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/messages?user=%s&peer=%s", c.base, url.QueryEscape(me), url.QueryEscape(peer))
	return c.do(ctx, fasthttp.MethodGet, u, nil)
}

// SendMessage posts one message and returns the persisted record including
// the server-assigned id and createdAt.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (models.Message, error) {
	raw, err := c.do(ctx, fasthttp.MethodPost, c.base+"/v1/messages", req)
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.Message{}, fmt.Errorf("decode send response: %w", err)
	}
	return msg, nil
}

// FetchReactions returns all reactions for the conversation between a and b.
func (c *Client) FetchReactions(ctx context.Context, a, b string) ([]models.Reaction, error) {
	u := fmt.Sprintf("%s/v1/reactions?a=%s&b=%s", c.base, url.QueryEscape(a), url.QueryEscape(b))
	raw, err := c.do(ctx, fasthttp.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []models.Reaction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return out, nil
}

// AddReaction posts one reaction.
func (c *Client) AddReaction(ctx context.Context, r models.Reaction) error {
	_, err := c.do(ctx, fasthttp.MethodPost, c.base+"/v1/reactions", r)
	return err
}

// do runs one request with the effective timeout (context deadline wins
// when tighter) and returns a copy of the response body. A non-nil payload
// is JSON-encoded into a pooled buffer so every send reuses the same
// scratch space instead of allocating per call.
func (c *Client) do(ctx context.Context, method, uri string, payload any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if payload != nil {
		bb := bytebufferpool.Get()
		defer bytebufferpool.Put(bb)
		if err := json.NewEncoder(bb).Encode(payload); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(bb.B)
	}

	if err := c.hc.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, uri, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Body: string(resp.Body())}
	}

	// copy the body out before the response goes back to the pool
	return append([]byte(nil), resp.Body()...), nil
}
