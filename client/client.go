package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/jsonapi"
	"github.com/cloudhubibi/gtmchat/models"
)

// ErrUnreachable is returned when the relay can't be reached at all.
var ErrUnreachable = errors.New("chat service unreachable")

// ErrUnsuccessful is returned when the relay answers 2xx but reports
// success=false.
var ErrUnsuccessful = errors.New("chat service reported failure")

// StatusError is returned for non-2xx responses. Message is the error field
// of the response body if it has one, otherwise the raw body.
type StatusError struct {
	Status  int
	Message string
}

func (e StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.Status, e.Message)
}

// RateLimited reports whether the relay rejected the request because the
// completion API is rate limiting it.
func (e StatusError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

func New(baseURL string) Client {
	return Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type Client struct {
	baseURL string
}

// Health returns nil if the relay answers its health probe with a 2xx status.
func (c Client) Health(ctx context.Context) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "health").String()
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: %w", ErrUnreachable, StatusError{Status: res.StatusCode, Message: string(body)})
	}
	var hr models.HealthResponse
	if err = json.NewDecoder(res.Body).Decode(&hr); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	return nil
}

func (c Client) ChatPost(ctx context.Context, req models.ChatPostRequest) (resp models.ChatPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "chat").String()
	if err != nil {
		return resp, err
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return resp, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	res, err := jsonapi.Raw(httpReq)
	if err != nil {
		return resp, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return resp, fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		se := StatusError{Status: res.StatusCode, Message: string(body)}
		if json.Unmarshal(body, &resp) == nil && resp.Error != "" {
			se.Message = resp.Error
		}
		return resp, se
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			return resp, fmt.Errorf("%w: failed to get response", ErrUnsuccessful)
		}
		return resp, fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Error)
	}
	return resp, nil
}
