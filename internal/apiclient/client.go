// Package apiclient is the HTTP transport shared by every API wrapper. It
// attaches the session's bearer token, normalises the {code, message, data}
// envelope into values or errors, and turns an unsilenced 401 into a session
// reset plus a redirect to the login page.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/session"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultLoginPath = "/login"
)

// User-facing messages emitted when Options.Toast is set.
const (
	MsgForbidden = "no permission"
	MsgOffline   = "network error, please check your connection"
)

// Config wires a Client. Session and Bus are required.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	Session      *session.Session
	Bus          *events.Bus
	Connectivity Connectivity
	// CurrentPath reports where the user is; stored as the post-login redirect on 401.
	CurrentPath func() string
	LoginPath   string
	HTTPClient  *http.Client
	Logger      *zerolog.Logger
}

// Options tune a single request. A nil *Options is valid.
type Options struct {
	Query   url.Values
	Body    any
	Headers http.Header
	// Loading emits Loading events around the request.
	Loading bool
	// Toast emits an error toast when the request fails.
	Toast bool
	// Silent skips session reset and redirect on 401.
	Silent bool
}

// Response is a raw HTTP result that passed the status checks.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Filename returns the filename suggested by Content-Disposition, or def.
func (r *Response) Filename(def string) string {
	if r == nil {
		return def
	}
	cd := r.Header.Get("Content-Disposition")
	if cd == "" {
		return def
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
		return def
	}
	// lenient fallback for headers that do not parse, e.g. unquoted spaces
	if _, after, ok := strings.Cut(cd, "filename="); ok {
		if name := strings.Trim(strings.TrimSpace(strings.SplitN(after, ";", 2)[0]), `"`); name != "" {
			return name
		}
	}
	return def
}

// Client issues requests against the back-end.
type Client struct {
	base        string
	http        *http.Client
	sess        *session.Session
	bus         *events.Bus
	online      Connectivity
	currentPath func() string
	loginPath   string
	log         zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	c := &Client{
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		http:        cfg.HTTPClient,
		sess:        cfg.Session,
		bus:         cfg.Bus,
		online:      cfg.Connectivity,
		currentPath: cfg.CurrentPath,
		loginPath:   cfg.LoginPath,
		log:         zerolog.Nop(),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "apiclient").Logger()
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.online == nil {
		c.online = AlwaysOnline{}
	}
	if c.loginPath == "" {
		c.loginPath = DefaultLoginPath
	}
	if c.currentPath == nil {
		c.currentPath = func() string { return "" }
	}
	return c, nil
}

// Session exposes the session the client authenticates with.
func (c *Client) Session() *session.Session { return c.sess }

// Do sends a JSON request and returns the envelope when its code is 200.
func (c *Client) Do(ctx context.Context, method, path string, opts *Options) (*types.Envelope, error) {
	if opts == nil {
		opts = &Options{}
	}
	resp, err := c.Raw(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	return c.envelope(method, path, resp, opts)
}

// Raw sends a JSON request and returns the response after the HTTP status checks only.
func (c *Client) Raw(ctx context.Context, method, path string, opts *Options) (*Response, error) {
	if opts == nil {
		opts = &Options{}
	}
	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	return c.send(ctx, method, path, body, "application/json", opts)
}

// Upload posts content as the single multipart field "file".
func (c *Client) Upload(ctx context.Context, path, filename string, content []byte, opts *Options) (*Response, error) {
	if opts == nil {
		opts = &Options{}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimetype.Detect(content).String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), opts)
}

// Download fetches a binary payload. A JSON body carrying a non-200 envelope
// is reported as a BusinessError.
func (c *Client) Download(ctx context.Context, path string, opts *Options) (*Response, error) {
	if opts == nil {
		opts = &Options{}
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", opts)
	if err != nil {
		return nil, err
	}
	if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == "application/json" {
		var env types.Envelope
		if json.Unmarshal(resp.Body, &env) == nil && !env.OK() {
			berr := &BusinessError{Envelope: env}
			c.notify(opts, berr)
			return nil, berr
		}
	}
	return resp, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) envelope(method, path string, resp *Response, opts *Options) (*types.Envelope, error) {
	var env types.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		err = fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
		c.notify(opts, err)
		return nil, err
	}
	if !env.OK() {
		berr := &BusinessError{Envelope: env}
		c.log.Debug().Str("path", path).Int("code", env.Code).Str("message", env.Message).Msg("business error")
		c.notify(opts, berr)
		return nil, berr
	}
	return &env, nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, opts *Options) (*Response, error) {
	start := time.Now()
	if !c.online.Online(ctx) {
		clientRequestsTotal.WithLabelValues(method, statusLabel(0, ErrOffline)).Inc()
		c.log.Warn().Str("method", method).Str("path", path).Msg("offline, request not sent")
		c.notify(opts, ErrOffline)
		return nil, ErrOffline
	}
	if opts.Loading {
		op := method + " " + path
		c.bus.Emit(events.Loading{Op: op, Active: true})
		defer c.bus.Emit(events.Loading{Op: op, Active: false})
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, opts.Query), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	token, err := c.sess.Token(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("read token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range opts.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		clientRequestsTotal.WithLabelValues(method, statusLabel(0, err)).Inc()
		err = fmt.Errorf("%s %s: %w", method, path, err)
		c.notify(opts, err)
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	clientRequestsTotal.WithLabelValues(method, statusLabel(res.StatusCode, nil)).Inc()
	clientRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.StatusCode).
		Dur("took", time.Since(start)).
		Bool("silent", opts.Silent).
		Msg("request")
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, c.statusError(ctx, res.StatusCode, data, opts)
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: data}, nil
}

func (c *Client) url(path string, q url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = c.base + path
	}
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + q.Encode()
	}
	return u
}

func (c *Client) statusError(ctx context.Context, status int, body []byte, opts *Options) error {
	se := &StatusError{Status: status, Body: body}
	var er types.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		se.Message = er.Message
		if se.Message == "" {
			se.Message = er.Error
		}
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	if status == http.StatusUnauthorized && !opts.Silent {
		c.expire(ctx)
		se.signalled = true
		return se
	}
	c.notify(opts, se)
	return se
}

// expire clears the session after a 401 and sends the user to the login page.
func (c *Client) expire(ctx context.Context) {
	current := c.currentPath()
	c.log.Info().Str("path", current).Msg("unauthorized, clearing session")
	if err := c.sess.Logout(ctx); err != nil {
		c.log.Error().Err(err).Msg("clear session")
	}
	onLogin := current == c.loginPath
	if current != "" && !onLogin {
		if err := c.sess.SetRedirect(ctx, current); err != nil {
			c.log.Error().Err(err).Msg("store redirect")
		}
	}
	c.bus.Emit(events.Unauthorized{Redirect: current})
	if !onLogin {
		c.bus.Emit(events.Navigate{To: c.loginPath})
	}
}

func (c *Client) notify(opts *Options, err error) {
	if opts == nil || !opts.Toast {
		return
	}
	msg := Message(err)
	switch {
	case errors.Is(err, ErrOffline):
		msg = MsgOffline
	case IsForbidden(err):
		msg = MsgForbidden
	}
	if msg == "" {
		msg = err.Error()
	}
	c.bus.Emit(events.Toast{Level: events.LevelError, Message: msg})
}

// Get issues a GET and decodes the envelope data into T.
func Get[T any](ctx context.Context, c *Client, path string, opts *Options) (T, error) {
	return call[T](ctx, c, http.MethodGet, path, nil, opts)
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts *Options) (T, error) {
	return call[T](ctx, c, http.MethodPost, path, body, opts)
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts *Options) (T, error) {
	return call[T](ctx, c, http.MethodPut, path, body, opts)
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, opts *Options) (T, error) {
	return call[T](ctx, c, http.MethodPatch, path, body, opts)
}

func Delete[T any](ctx context.Context, c *Client, path string, opts *Options) (T, error) {
	return call[T](ctx, c, http.MethodDelete, path, nil, opts)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, opts *Options) (T, error) {
	var out T
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if body != nil {
		o.Body = body
	}
	env, err := c.Do(ctx, method, path, &o)
	if err != nil {
		return out, err
	}
	if err := env.Decode(&out); err != nil {
		return out, fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return out, nil
}
