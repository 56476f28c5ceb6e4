package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	ngroklib "golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"github.com/btouchard/readyalert/internal/config"
)

// ErrNoAuthToken is returned by Start when no ngrok token is configured.
var ErrNoAuthToken = errors.New("ngrok auth token is required (set tunnel.authtoken or READYALERT_NGROK_AUTHTOKEN)")

// NgrokTunnel implements Tunnel using ngrok.
type NgrokTunnel struct {
	authToken string
	domain    string

	mu       sync.Mutex
	listener net.Listener
	url      string
}

// NewNgrok creates an ngrok tunnel from configuration.
func NewNgrok(cfg config.TunnelConfig) *NgrokTunnel {
	return &NgrokTunnel{
		authToken: cfg.AuthToken,
		domain:    cfg.Domain,
	}
}

// Start opens the tunnel and returns its public URL.
func (n *NgrokTunnel) Start(ctx context.Context) (string, error) {
	if n.authToken == "" {
		return "", ErrNoAuthToken
	}

	endpoint := ngrokconfig.HTTPEndpoint()
	if n.domain != "" {
		endpoint = ngrokconfig.HTTPEndpoint(ngrokconfig.WithDomain(n.domain))
	}

	slog.Info("starting ngrok tunnel", "domain", n.domain)
	listener, err := ngroklib.Listen(ctx, endpoint, ngroklib.WithAuthtoken(n.authToken))
	if err != nil {
		return "", fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}

	n.mu.Lock()
	n.listener = listener
	n.url = httpsURL(listener.Addr().String())
	url := n.url
	n.mu.Unlock()

	slog.Info("ngrok tunnel established", "public_url", url)
	return url, nil
}

// Close closes the tunnel. Closing an unstarted tunnel is a no-op.
func (n *NgrokTunnel) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		return nil
	}
	slog.Info("closing ngrok tunnel", "public_url", n.url)

	err := n.listener.Close()
	n.listener = nil
	n.url = ""
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close ngrok tunnel: %w", err)
	}
	return nil
}

// PublicURL returns the public URL, empty before Start.
func (n *NgrokTunnel) PublicURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

// Listener returns the listener accepting tunneled connections.
func (n *NgrokTunnel) Listener() net.Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listener
}
