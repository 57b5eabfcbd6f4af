package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRateLimited      = errors.New("rate limited")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrNotAuthenticated
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

type API struct {
	client  *http.Client
	baseURL string
	host    string
	headers http.Header
	creds   http.Header
	cookies []*http.Cookie
	limiter *rate.Limiter
}

type Option func(*API)

func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		if c != nil {
			a.client = c
		}
	}
}

func WithHeader(key, value string) Option {
	return func(a *API) { a.headers.Set(key, value) }
}

// WithCredentialHeader sets a header that, like cookies, is only sent to the
// API's own host.
func WithCredentialHeader(key, value string) Option {
	return func(a *API) {
		if value != "" {
			a.creds.Set(key, value)
		}
	}
}

func WithCookie(name, value string) Option {
	return func(a *API) {
		if value != "" {
			a.cookies = append(a.cookies, &http.Cookie{Name: name, Value: value})
		}
	}
}

// WithRateLimit paces every request made through the API. A non-positive rps
// disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *API) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewAPI(baseURL string, opts ...Option) *API {
	a := &API{
		client:  http.DefaultClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{},
		creds:   http.Header{},
	}
	if u, err := url.Parse(a.baseURL); err == nil {
		a.host = u.Host
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) BaseURL() string {
	return a.baseURL
}

func (a *API) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path
}

func (a *API) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range a.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !a.sameHost(req.URL) {
		return req, nil
	}
	for k, vs := range a.creds {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	return req, nil
}

// sameHost reports whether u targets the base URL's host. Credentials never
// leave it, so download URLs on other hosts go out without them.
func (a *API) sameHost(u *url.URL) bool {
	return a.host != "" && strings.EqualFold(u.Host, a.host)
}

func (a *API) do(req *http.Request) (*http.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}
	return resp, nil
}

func (a *API) decode(req *http.Request, v any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := a.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	target := a.resolve(path)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}
	req, err := a.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return a.decode(req, v)
}

func (a *API) Post(ctx context.Context, path string, body any, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := a.newRequest(ctx, http.MethodPost, a.resolve(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	return a.decode(req, v)
}

// Open streams the body at rawURL. The caller closes it.
func (a *API) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := a.newRequest(ctx, http.MethodGet, a.resolve(rawURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
