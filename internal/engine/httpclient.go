package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// PageResult is a fetched page plus where the server actually left us.
// Portals signal login state and duplicate applications via redirects,
// so the final URL matters as much as the body.
type PageResult struct {
	Body     []byte
	FinalURL string
	Status   int
}

// PortalClient performs authenticated portal traffic. Form posts and
// navigation go through net/http with a cookie jar; plain content GETs
// prefer the browser-fingerprint client when one is configured, with
// session cookies injected from the jar.
type PortalClient struct {
	HTTP    *http.Client
	Browser *stealth.BrowserClient
	Jar     http.CookieJar
	Retry   RetryConfig
}

// NewPortalClient builds a client with a fresh cookie jar.
func NewPortalClient(browser *stealth.BrowserClient, timeout time.Duration) (*PortalClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new portal client: %w", err)
	}
	return &PortalClient{
		HTTP: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		Browser: browser,
		Jar:     jar,
		Retry:   DefaultRetryConfig,
	}, nil
}

// Get navigates like a browser: follows redirects, updates the jar, and
// reports the final URL.
func (pc *PortalClient) Get(ctx context.Context, rawURL string) (*PageResult, error) {
	resp, err := RetryHTTP(ctx, pc.Retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		pc.browserHeaders(req)
		return pc.HTTP.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("get %s: read body: %w", rawURL, err)
	}
	return &PageResult{Body: body, FinalURL: resp.Request.URL.String(), Status: resp.StatusCode}, nil
}

// Fetch retrieves content, going through the stealth client when available
// so the TLS fingerprint matches a real Chrome. Session cookies from the
// jar ride along in the cookie header.
func (pc *PortalClient) Fetch(ctx context.Context, rawURL string) (*PageResult, error) {
	if pc.Browser == nil {
		return pc.Get(ctx, rawURL)
	}
	headers := stealth.ChromeHeaders()
	if c := pc.cookieHeader(rawURL); c != "" {
		headers["cookie"] = c
	}
	return stealth.RetryDo(ctx, stealth.DefaultRetryConfig, func() (*PageResult, error) {
		// BrowserClient.Do returns response headers, not the final URL,
		// so redirects through this path report the requested URL.
		data, _, status, err := pc.Browser.Do(http.MethodGet, rawURL, headers, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if stealth.IsRetryableStatus(status) {
			return nil, fmt.Errorf("fetch %s: status %d", rawURL, status)
		}
		return &PageResult{Body: data, FinalURL: rawURL, Status: status}, nil
	})
}

// PostForm submits an application/x-www-form-urlencoded form and follows
// redirects, returning the landing page.
func (pc *PortalClient) PostForm(ctx context.Context, rawURL string, form url.Values) (*PageResult, error) {
	resp, err := RetryHTTP(ctx, pc.Retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		pc.browserHeaders(req)
		return pc.HTTP.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("post %s: read body: %w", rawURL, err)
	}
	return &PageResult{Body: body, FinalURL: resp.Request.URL.String(), Status: resp.StatusCode}, nil
}

// FileField attaches a local file to a multipart form.
type FileField struct {
	Field    string
	Filename string
	Content  []byte
}

// PostMultipart submits a multipart/form-data form, used for applications
// that upload a CV alongside the answers.
func (pc *PortalClient) PostMultipart(ctx context.Context, rawURL string, fields map[string]string, files []FileField) (*PageResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("post %s: %w", rawURL, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", rawURL, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("post %s: %w", rawURL, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("post %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	pc.browserHeaders(req)

	resp, err := pc.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("post %s: read body: %w", rawURL, err)
	}
	return &PageResult{Body: body, FinalURL: resp.Request.URL.String(), Status: resp.StatusCode}, nil
}

func (pc *PortalClient) browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", stealth.RandomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CL,es;q=0.9,en;q=0.8")
}

func (pc *PortalClient) cookieHeader(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	var parts []string
	for _, c := range pc.Jar.Cookies(u) {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
