// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP はリクエストの送信元IPアドレスを返す。
// リバースプロキシ配下を想定し、X-Forwarded-Forの先頭エントリを優先する。
// ヘッダーがない場合はRemoteAddrからポートを除いて返す。
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
