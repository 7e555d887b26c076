package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://www.bilibili.com"
)

// Response is the envelope wrapped around every API payload.
// Code 0 is success; anything else is a protocol error.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned code=%d: %s", e.Endpoint, e.Code, e.Message)
}

type Client struct {
	baseURL     string
	credentials Credentials
	HTTPClient  *http.Client
}

func NewClient(baseURL url.URL, credentials Credentials) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL.String(), "/"),
		credentials: credentials,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Credentials() Credentials {
	return c.credentials
}

func (c *Client) newRequest(ctx context.Context, method string, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	for _, cookie := range c.credentials.Cookies() {
		req.AddCookie(cookie)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected HTTP status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// getJSON performs a GET and fails with *APIError on a non-zero code.
func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	var envelope Response[T]
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	if envelope.Code != 0 {
		return nil, &APIError{Endpoint: path, Code: envelope.Code, Message: envelope.Message}
	}
	return &envelope.Data, nil
}
