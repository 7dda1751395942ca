package apiclient

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Connectivity is consulted before every request.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// AlwaysOnline never blocks a request.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(context.Context) bool { return true }

// ConnectivityFunc adapts a function.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// DialProbe reports online when a TCP connection to Addr succeeds within Timeout.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

// NewDialProbe derives the probe address from a base URL.
func NewDialProbe(baseURL string, timeout time.Duration) (*DialProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return &DialProbe{Addr: host, Timeout: timeout}, nil
}

func (p *DialProbe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
