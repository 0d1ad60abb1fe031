package http

import (
	"net"
	nethttp "net/http"
	"time"
)

// NewClient returns the client shared by every remote adapter. timeout caps
// one request, including reading the body.
func NewClient(timeout time.Duration) *nethttp.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &nethttp.Transport{
		Proxy: nethttp.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &nethttp.Client{Timeout: timeout, Transport: transport}
}

func MaxDuration(a, b time.Duration) time.Duration {
	if a >= b {
		return a
	}
	return b
}
