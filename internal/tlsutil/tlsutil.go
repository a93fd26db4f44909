package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultTLSConfig 返回加固的 TLS 配置：TLS 1.2+，仅 AEAD 密码套件
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// SecureTransport 返回使用 DefaultTLSConfig 的 http.Transport。
// websocket 升级只能走 HTTP/1.1，此时 http2 必须为 false。
func SecureTransport(http2 bool) *http.Transport {
	tr := &http.Transport{
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     http2,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !http2 {
		tr.TLSClientConfig.NextProtos = []string{"http/1.1"}
	}
	return tr
}

// SecureHTTPClient 替代 &http.Client{Timeout: timeout}
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: SecureTransport(true),
	}
}

// WebSocketClient 返回用于 websocket 握手的客户端；ws:// 地址返回 nil，使用库的默认客户端
func WebSocketClient(url string) *http.Client {
	if !strings.HasPrefix(url, "wss://") {
		return nil
	}
	return &http.Client{Transport: SecureTransport(false)}
}
