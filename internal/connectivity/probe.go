package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// InterfaceSignal reports online when at least one non-loopback network
// interface is up and has an address assigned. This is the cheap check;
// it says nothing about whether the internet is actually reachable.
type InterfaceSignal struct{}

func (InterfaceSignal) Online() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// StaticSignal is a fixed-value Signal for wiring and tests.
type StaticSignal bool

func (s StaticSignal) Online() bool { return bool(s) }

// HTTPProber checks reachability against a known endpoint, typically a
// generate_204 URL. Any HTTP response counts as reachable; only
// network-level failures and timeouts count against connectivity.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		URL: url,
		// Per-probe deadlines come from the caller's context.
		Client: &http.Client{},
	}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe %s: status %d", p.URL, resp.StatusCode)
	}
	return nil
}
