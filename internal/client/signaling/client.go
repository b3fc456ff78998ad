package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

// Client talks JSON over HTTP to the relay API. Every request carries the
// configured timeout; there is no retry here, transient failures are left
// to the caller's next scheduled cycle.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

var _ ports.Signaler = (*Client)(nil)

func (c *Client) ListPeers(ctx context.Context) ([]domain.PeerID, error) {
	var out struct {
		Peers []domain.PeerID `json:"peers"`
	}
	if err := c.get(ctx, "/api/v1/peers", &out); err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	return out.Peers, nil
}

func (c *Client) Poll(ctx context.Context, id domain.PeerID) ([]domain.Delivery, error) {
	var out struct {
		Messages []domain.Delivery `json:"messages"`
	}
	path := "/api/v1/poll/" + url.PathEscape(string(id))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("poll %s: %w", id, err)
	}
	return out.Messages, nil
}

func (c *Client) Send(ctx context.Context, env domain.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send envelope: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send envelope: relay returned %s", resp.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
