// File: internal/portal/httpdrv/client.go
package httpdrv

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/xkilldash9x/courtbook/internal/config"
)

// Conservative transport defaults: the portal is a single slow Liferay
// instance, not a scan target, so this tuning favors politeness over
// throughput.
const (
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 15 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultMaxIdleConnsPerHost   = 4
)

// newHTTPClient builds the http.Client for the HTTP substrate. Redirects
// are never followed automatically: the login sequence depends on observing
// every hop to harvest cookies, so the substrate walks redirect chains
// itself.
func newHTTPClient(cfg config.NetworkConfig) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.IgnoreTLSErrors,
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 15 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
