package utils

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for Discord REST calls. Every request is
// bounded by timeout; per-call contexts can only shorten it.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   10, // 所有请求都发往同一个 API 主机
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
