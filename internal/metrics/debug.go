package metrics

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

const pprofPrefix = "/debug/pprof/"

// EnablePprof mounts net/http/pprof under /debug/pprof/ on the metrics
// listener. A non-empty token is required as "Authorization: Bearer" or
// ?token= on those routes. Call before Serve.
func (m *Metrics) EnablePprof(token string) {
	if m == nil {
		return
	}
	m.pprof = true
	m.pprofToken = strings.TrimSpace(token)
}

// checkBind refuses an unauthenticated profiler on a non-loopback address.
func (m *Metrics) checkBind(addr string) error {
	if m == nil || !m.pprof || m.pprofToken != "" || isLoopbackAddr(addr) {
		return nil
	}
	return errors.New("metrics.pprof on a non-loopback addr requires metrics.token")
}

func (m *Metrics) mountPprof(mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(m.pprofToken, h) }
	mux.HandleFunc(pprofPrefix, wrap(hpprof.Index))
	mux.HandleFunc(pprofPrefix+"cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc(pprofPrefix+"profile", wrap(hpprof.Profile))
	mux.HandleFunc(pprofPrefix+"symbol", wrap(hpprof.Symbol))
	mux.HandleFunc(pprofPrefix+"trace", wrap(hpprof.Trace))
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return h
	}
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

// isLoopbackAddr reports whether host:port binds loopback only. An empty
// host means all interfaces.
func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
