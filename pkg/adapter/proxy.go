package adapter

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/proxy"
)

// NewSocksClient returns an HTTP client that dials through a SOCKS5 proxy
func NewSocksClient(socksAddr string) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create socks dialer", goerr.V("addr", socksAddr))
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second,
	}, nil
}
