// Package httpclient provides the HTTP client used for all portal API calls.
// It injects the session's bearer token into outgoing requests, surfaces
// server error messages, and notifies the session layer when the server
// rejects a credential so an auto-logout can be triggered exactly once.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Configurator supplies server location and the active bearer credential.
// The session store implements this so the Authorization header always
// reflects the current session.
type Configurator interface {
	GetServerURL() string
	GetToken() string
	GetTokenExpiry() time.Time
}

// ServerError is the error envelope portal endpoints return for 4xx/5xx.
type ServerError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTPError represents a failed request with the server's status code and
// best-available message.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// HTTPClient makes authenticated requests to the portal REST API.
type HTTPClient struct {
	config         Configurator
	httpClient     *http.Client
	onUnauthorized func()
}

// ClientOptions contains options for constructing the HTTP client.
type ClientOptions struct {
	DisableCertValidation bool
	RequestTimeout        time.Duration // zero means the 30s default
}

const defaultRequestTimeout = 30 * time.Second

// getRetryAttempts is how many times idempotent GETs are tried on transport
// failure. Mutations are never retried automatically.
const getRetryAttempts = 3

// NewClient creates a client for the given configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a client with explicit options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// SetUnauthorizedHook registers the callback invoked when the server returns
// 401 for a request not flagged as a retry. The session store uses this to
// clear the session and emit its auto-logout event.
func (c *HTTPClient) SetUnauthorizedHook(hook func()) {
	c.onUnauthorized = hook
}

// RequestOptions describes a single API request.
type RequestOptions struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        []byte
	Retry       bool   // set on re-issued requests; suppresses the 401 hook
	Token       string // overrides the session credential for this request
}

// DoRequest makes an HTTP request with the given options and returns the
// response body. GET requests are retried a small number of times on
// transport errors; server responses, including errors, are never retried.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	if opts.Method == http.MethodGet {
		return retry.DoWithData(func() ([]byte, error) {
			return c.doRequest(ctx, opts)
		},
			retry.Context(ctx),
			retry.Attempts(getRetryAttempts),
			retry.Delay(200*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				_, isServerResponse := err.(*HTTPError)
				return !isServerResponse
			}),
		)
	}
	return c.doRequest(ctx, opts)
}

func (c *HTTPClient) doRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewBuffer(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token := opts.Token
	if token == "" {
		token = c.config.GetToken()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.Retry && c.onUnauthorized != nil {
		c.onUnauthorized()
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(body, resp.StatusCode),
		}
	}

	return body, nil
}

// serverMessage extracts the server's error message from a response body,
// accepting either the {status, message} envelope or a bare {error} field.
func serverMessage(body []byte, statusCode int) string {
	var serverErr ServerError
	if err := json.Unmarshal(body, &serverErr); err == nil && serverErr.Message != "" {
		return serverErr.Message
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return msg
	}
	if len(body) > 0 {
		return string(body)
	}
	return http.StatusText(statusCode)
}

// Get makes a GET request to the given path.
func (c *HTTPClient) Get(ctx context.Context, apiPath string, queryParams map[string]string) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        apiPath,
		QueryParams: queryParams,
	})
}

// Post makes a POST request with a JSON body to the given path.
func (c *HTTPClient) Post(ctx context.Context, apiPath string, body []byte) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   apiPath,
		Body:   body,
	})
}
