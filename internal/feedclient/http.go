package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-leavehub/internal/notification"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPClient talks to the notification HTTP surface. It implements Puller
// and ReadMarker.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

func NewHTTPClient(baseURL string, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type listEnvelope struct {
	Ok   bool                                `json:"ok"`
	Data []notification.NotificationResponse `json:"data"`
}

func (c *HTTPClient) Pull(ctx context.Context) ([]notification.NotificationResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/notifications/me")
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull notifications: unexpected status %d", resp.StatusCode)
	}

	var env listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *HTTPClient) MarkRead(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/v1/notifications/"+id+"/read")
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark read: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
