// Package tunnel publishes the HTTP router on a public HTTPS address, which
// browsers require before a service worker may subscribe to push.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Tunnel exposes the local server via a public HTTPS URL.
type Tunnel interface {
	Start(ctx context.Context) (publicURL string, err error)
	Close() error
	PublicURL() string
	Listener() net.Listener
}

// Serve starts t and serves handler on it until ctx is done. It returns
// the public URL once the tunnel is up; serving continues in the background.
func Serve(ctx context.Context, t Tunnel, handler http.Handler) (string, error) {
	url, err := t.Start(ctx)
	if err != nil {
		return "", err
	}

	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(t.Listener()); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			slog.Error("tunnel server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
		_ = t.Close()
	}()

	return url, nil
}

// httpsURL returns addr as an absolute https URL.
func httpsURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return fmt.Sprintf("https://%s", addr)
}
