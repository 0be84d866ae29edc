// Package cats is a client for the Cats Gang mini-app backend.
package cats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production backend.
	DefaultBaseURL = "https://cats-backend-cxblew-prod.up.railway.app"
	// DefaultProxyCheckURL echoes the caller's IP as {"origin": "..."}.
	DefaultProxyCheckURL = "https://httpbin.org/ip"

	frontendOrigin    = "https://cats-frontend.tgapps.store"
	proxyCheckTimeout = 5 * time.Second
)

// ErrUnexpectedStatus is wrapped by every *StatusError.
var ErrUnexpectedStatus = errors.New("cats: unexpected status")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cats: %s %s: status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	// Proxy is a proxy URL; empty connects directly.
	Proxy         string
	Timeout       time.Duration
	ProxyCheckURL string
	Logger        *zap.Logger
}

// Client talks to the backend on behalf of one session.
type Client struct {
	http          *resty.Client
	proxyCheckURL string
}

// New builds a client with the mini-app headers.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ProxyCheckURL == "" {
		opts.ProxyCheckURL = DefaultProxyCheckURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetLogger(opts.Logger.Sugar()).
		SetHeaders(map[string]string{
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Content-Type":    "application/json",
			"Origin":          frontendOrigin,
			"Referer":         frontendOrigin + "/",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "cross-site",
		})
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Proxy != "" {
		hc.SetProxy(opts.Proxy)
	}
	return &Client{http: hc, proxyCheckURL: opts.ProxyCheckURL}
}

// SetAuth installs the mini-app init data as the bearer credential.
func (c *Client) SetAuth(webAppData string) {
	c.http.SetHeader("Authorization", "tma "+webAppData)
}

// CreateUser registers the account under referral. It reports false when
// the backend refuses, which is the normal case for an existing user.
func (c *Client) CreateUser(ctx context.Context, referral string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("referral_code", referral).
		Post("/user/create")
	if err != nil {
		return false, fmt.Errorf("cats: create user: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return true, nil
	case http.StatusUnauthorized:
		return false, &StatusError{Method: http.MethodPost, Path: "/user/create", Code: resp.StatusCode()}
	default:
		return false, nil
	}
}

func (c *Client) User(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/user", nil, nil, &u)
	return u, err
}

// Tasks lists the account's tasks in group.
func (c *Client) Tasks(ctx context.Context, group string) ([]Task, error) {
	var out tasksResponse
	err := c.do(ctx, http.MethodGet, "/tasks/user", map[string]string{"group": group}, nil, &out)
	return out.Tasks, err
}

// CompleteTask claims an OPEN_LINK style task.
func (c *Client) CompleteTask(ctx context.Context, id int64) (bool, error) {
	var out completeResponse
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.FormatInt(id, 10)+"/complete", nil, struct{}{}, &out)
	return out.Success, err
}

// CheckTask asks the backend to verify a task such as a channel subscription.
func (c *Client) CheckTask(ctx context.Context, id int64) (bool, error) {
	var out checkResponse
	err := c.do(ctx, http.MethodPost, "/tasks/"+strconv.FormatInt(id, 10)+"/check", nil, struct{}{}, &out)
	return out.Completed, err
}

// ProxyIP returns the exit IP seen by the proxy check endpoint.
func (c *Client) ProxyIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	var out ipResponse
	if err := c.do(ctx, http.MethodGet, c.proxyCheckURL, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Origin, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("cats: %s %s: %w", method, path, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode()}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("cats: decode %s %s: %w", method, path, err)
	}
	return nil
}
