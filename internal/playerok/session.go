package playerok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

const DefaultBaseURL = "https://playerok.com"

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 7
	maxChallengeDelay = 3 * time.Second
)

// Body markers that identify an anti-bot interstitial served in place of the
// API response.
var challengeSignatures = []string{
	"<title>Just a moment...</title>",
	"window._cf_chl_opt",
	"Enable JavaScript and cookies to continue",
	"Checking your browser before accessing",
	"cf-browser-verification",
	"Cloudflare Ray ID",
}

// Browser user agents rotated when none is configured, so repeated calls do
// not present a constant fingerprint.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36 Edg/140.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
}

// SessionConfig configures a transport session.
type SessionConfig struct {
	Token      string
	UserAgent  string // empty: rotate through userAgentPool per request
	Proxy      string // any form accepted by NormalizeProxy
	Timeout    time.Duration
	MaxRetries int // challenge retries before giving up
	BaseURL    string
}

// credentials is the immutable settings snapshot a transport handle is
// built from. Hot reload replaces the whole handle, never mutates one.
type credentials struct {
	token     string
	userAgent string
	proxyURL  string
}

type transport struct {
	creds  credentials
	client *http.Client
}

// Session owns one HTTP client bound to a proxy and user agent, signs every
// request with the account token, and retries through anti-bot challenges
// with transport replacement. Safe for concurrent use; credential updates
// swap the handle atomically so in-flight calls finish on the old one.
type Session struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	handle     atomic.Pointer[transport]

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSession creates a session. The proxy string is normalized here; an
// unparsable proxy is a configuration error surfaced immediately.
func NewSession(cfg SessionConfig) (*Session, error) {
	proxyURL, err := NormalizeProxy(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	s := &Session{
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		sleep:      sleepCtx,
	}
	s.handle.Store(newTransport(credentials{
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		proxyURL:  proxyURL,
	}, cfg.Timeout))
	return s, nil
}

func newTransport(creds credentials, timeout time.Duration) *transport {
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if creds.proxyURL != "" {
		if u, err := url.Parse(creds.proxyURL); err == nil {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	return &transport{
		creds:  creds,
		client: &http.Client{Transport: tr, Timeout: timeout},
	}
}

// BaseURL returns the remote origin all requests go to.
func (s *Session) BaseURL() string { return s.baseURL }

// UpdateProxy swaps the transport for one bound to the new proxy. The empty
// string disables proxying. In-flight requests complete on the old handle.
func (s *Session) UpdateProxy(proxy string) error {
	proxyURL, err := NormalizeProxy(proxy)
	if err != nil {
		return err
	}
	creds := s.handle.Load().creds
	creds.proxyURL = proxyURL
	s.handle.Store(newTransport(creds, s.timeout))
	return nil
}

// UpdateUserAgent swaps the transport for one presenting the new user agent.
func (s *Session) UpdateUserAgent(ua string) {
	creds := s.handle.Load().creds
	creds.userAgent = ua
	s.handle.Store(newTransport(creds, s.timeout))
}

// UpdateToken swaps the transport for one signing with the new token.
func (s *Session) UpdateToken(token string) {
	creds := s.handle.Load().creds
	creds.token = token
	s.handle.Store(newTransport(creds, s.timeout))
}

// refresh rebuilds the transport handle with unchanged credentials. Used
// between challenge retries to discard the flagged connection state.
func (s *Session) refresh() {
	s.handle.Store(newTransport(s.handle.Load().creds, s.timeout))
}

// Get issues a GET to path with the given query parameters and returns the
// response body after challenge and error screening.
func (s *Session) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return s.do(ctx, func(t *transport) (*http.Request, error) {
		u := s.baseURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, "")
}

// PostJSON issues a POST with a JSON body.
func (s *Session) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return s.do(ctx, func(t *transport) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	}, "application/json")
}

// PostMultipart issues a POST using the GraphQL multipart convention: the
// operations and map fields plus a single file part keyed "1".
func (s *Session) PostMultipart(ctx context.Context, path string, fields map[string]string, filePath string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write multipart field: %w", err)
		}
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()
	part, err := w.CreateFormFile("1", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	body := buf.Bytes()
	return s.do(ctx, func(t *transport) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	}, w.FormDataContentType())
}

// do runs one request through the challenge-retry loop. The request is
// rebuilt per attempt because bodies are single-use and the transport
// handle may have been replaced in between.
func (s *Session) do(ctx context.Context, build func(*transport) (*http.Request, error), contentType string) ([]byte, error) {
	var lastBody []byte
	var lastStatus int

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		t := s.handle.Load()
		req, err := build(t)
		if err != nil {
			return nil, err
		}
		s.applyHeaders(req, t.creds, contentType)

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{Status: resp.StatusCode, Err: err}
		}

		if !isChallenge(body) {
			return screen(resp.StatusCode, body)
		}

		lastBody, lastStatus = body, resp.StatusCode
		if attempt == s.maxRetries-1 {
			break
		}
		delay := time.Duration(attempt+1) * time.Second
		if delay > maxChallengeDelay {
			delay = maxChallengeDelay
		}
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		s.refresh()
	}

	return nil, &ChallengeError{
		Attempts: s.maxRetries,
		Status:   lastStatus,
		LastBody: string(lastBody),
	}
}

// screen inspects a non-challenge response for structured remote errors.
func screen(status int, body []byte) ([]byte, error) {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		msgs := make([]string, len(payload.Errors))
		for i, e := range payload.Errors {
			msgs[i] = e.Message
		}
		return nil, &RemoteError{Messages: msgs}
	}
	if status != http.StatusOK {
		return nil, &TransportError{Status: status, Body: string(body)}
	}
	return body, nil
}

func isChallenge(body []byte) bool {
	text := string(body)
	for _, sig := range challengeSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// applyHeaders builds the realistic browser header set, signs the request
// with the token cookie, and keeps the sec-ch-ua family consistent with the
// chosen user agent.
func (s *Session) applyHeaders(req *http.Request, creds credentials, contentType string) {
	ua := creds.userAgent
	if ua == "" {
		ua = userAgentPool[rand.IntN(len(userAgentPool))]
	}
	chromeVersion := "140.0.0.0"
	if _, rest, ok := strings.Cut(ua, "Chrome/"); ok {
		if v, _, _ := strings.Cut(rest, " "); v != "" {
			chromeVersion = v
		}
	}

	h := req.Header
	h.Set("accept", "*/*")
	h.Set("accept-language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("apollo-require-preflight", "true")
	h.Set("apollographql-client-name", "web")
	h.Set("origin", s.baseURL)
	h.Set("priority", "u=1, i")
	h.Set("referer", s.baseURL+"/")
	h.Set("sec-ch-ua", fmt.Sprintf(`"Chromium";v=%q, "Not=A?Brand";v="24", "Google Chrome";v=%q`, chromeVersion, chromeVersion))
	h.Set("sec-ch-ua-arch", `"x86"`)
	h.Set("sec-ch-ua-bitness", `"64"`)
	h.Set("sec-ch-ua-full-version", fmt.Sprintf("%q", chromeVersion))
	h.Set("sec-ch-ua-full-version-list", fmt.Sprintf(`"Chromium";v=%q, "Not=A?Brand";v="24.0.0.0", "Google Chrome";v=%q`, chromeVersion, chromeVersion))
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-model", `""`)
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("sec-ch-ua-platform-version", `"15.0.0"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("x-timezone-offset", "-180")
	h.Set("user-agent", ua)
	h.Set("cookie", "token="+creds.token)
	if contentType != "" {
		h.Set("content-type", contentType)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
