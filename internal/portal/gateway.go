package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"seatwatch/internal/shared/config"
	"seatwatch/pkg/logger"
)

// TransportError is a network-level failure talking to the portal
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("portal %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Request describes one call to the portal
type Request struct {
	Method     string
	Path       string
	Params     url.Values
	Form       url.Values
	Cookies    Cookies
	Referer    string
	NoRedirect bool
	Ajax       bool
}

// Response is a fully read portal response. Cookies is the union of the
// request cookies and everything the portal set along the way.
type Response struct {
	Status  int
	Header  http.Header
	Cookies Cookies
	Body    []byte
	URL     string
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// IsRedirect reports a 3xx status
func (r *Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// Document parses the body as HTML
func (r *Response) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
}

// Options configures a Gateway
type Options struct {
	BaseURL           string
	Headers           config.HeaderProfile
	Proxy             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *logger.Logger
}

// Gateway sends requests to the portal the way a browser would
type Gateway struct {
	base      *url.URL
	origin    string
	headers   config.HeaderProfile
	transport http.RoundTripper
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// New creates a gateway for the portal rooted at opts.BaseURL
func New(opts Options) (*Gateway, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal base URL %q must be absolute", opts.BaseURL)
	}
	// Relative paths resolve against the directory of the base URL.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	return &Gateway{
		base:      base,
		origin:    base.Scheme + "://" + base.Host,
		headers:   opts.Headers,
		transport: transport,
		timeout:   opts.Timeout,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    log,
	}, nil
}

// URL resolves path against the portal base and appends params
func (g *Gateway) URL(path string, params url.Values) string {
	return g.resolve(path, params).String()
}

func (g *Gateway) resolve(path string, params url.Values) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	u := g.base.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u
}

// Do performs req and reads the whole response
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := g.resolve(req.Path, req.Params)

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build portal request: %w", err)
	}
	g.setHeaders(httpReq, req)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	jar.SetCookies(target, req.Cookies.httpCookies())
	hops := &hopRecorder{next: g.transport}

	client := &http.Client{
		Transport: hops,
		Jar:       jar,
		Timeout:   g.timeout,
	}
	if req.NoRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, URL: target.String(), Err: err}
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		g.logger.LogPortalError(ctx, method, target.String(), err)
		return nil, &TransportError{Method: method, URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.LogPortalError(ctx, method, target.String(), err)
		return nil, &TransportError{Method: method, URL: target.String(), Err: err}
	}
	g.logger.LogPortalRequest(ctx, method, target.String(), resp.StatusCode, time.Since(start))

	cookies := req.Cookies.Merge(hops.cookies)

	return &Response{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Cookies: cookies,
		Body:    data,
		URL:     resp.Request.URL.String(),
	}, nil
}

// hopRecorder collects the cookies set by every response of one call,
// redirect hops included, whatever host or path they are scoped to.
type hopRecorder struct {
	next    http.RoundTripper
	cookies Cookies
}

func (h *hopRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := h.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	h.cookies = h.cookies.Merge(fromHTTP(resp.Cookies()))
	return resp, nil
}

func (g *Gateway) setHeaders(httpReq *http.Request, req Request) {
	httpReq.Header.Set("Accept", g.headers.Accept)
	httpReq.Header.Set("Accept-Language", g.headers.AcceptLanguage)
	httpReq.Header.Set("User-Agent", g.headers.UserAgent)
	httpReq.Header.Set("Origin", g.origin)
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", g.URL(req.Referer, nil))
	}
	if req.Ajax {
		httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
}
