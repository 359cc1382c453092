package connect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"easyflip-backend/internal/domain"
)

// Client calls the backend's OAuth start and status endpoints with a user access token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message string `json:"message"`
		Details struct {
			Class string `json:"class"`
		} `json:"details"`
	} `json:"error"`
}

func (c *Client) StartAuth(ctx context.Context) (*domain.ConnectStart, error) {
	var out domain.ConnectStart
	if err := c.call(ctx, http.MethodPost, "/api/v1/ebay/oauth/start", &out); err != nil {
		return nil, err
	}
	if out.AuthURL == "" || out.State == "" {
		return nil, &Error{Class: domain.ErrorUnknown, Err: errors.New("start response is missing auth_url or state")}
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, state string) (*domain.ConnectStatus, error) {
	var out domain.ConnectStatus
	path := "/api/v1/ebay/oauth/status?state=" + url.QueryEscape(state)
	if err := c.call(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Class: domain.ErrorNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Class: domain.ErrorNetwork, Err: err}
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 {
		msg := env.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		class := domain.ErrorUnknown
		switch {
		case resp.StatusCode >= 500 && env.Error.Details.Class == string(domain.ErrorAuthConfig):
			class = domain.ErrorAuthConfig
		case env.Error.Details.Class == string(domain.ErrorNetwork):
			class = domain.ErrorNetwork
		case env.Error.Details.Class == string(domain.ErrorTimeout):
			class = domain.ErrorTimeout
		}
		return &Error{Class: class, Err: fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, msg)}
	}
	if len(env.Data) == 0 {
		return &Error{Class: domain.ErrorUnknown, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Class: domain.ErrorUnknown, Err: err}
	}
	return nil
}
