package fingerprint

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello fingerprint.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard crypto/tls
	ProfileRandom  Profile = "random" // one of the browser presets, per connection
)

// randomPresets are the hellos ProfileRandom draws from. Only concrete
// presets are listed; utls's randomized hellos can offer curves it cannot
// build a key share for.
var randomPresets = []utls.ClientHelloID{
	utls.HelloChrome_Auto,
	utls.HelloFirefox_Auto,
	utls.HelloIOS_Auto,
}

// Profiles lists every supported profile.
func Profiles() []Profile {
	return []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom}
}

// ParseProfile resolves a case-insensitive profile name. Empty means chrome.
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return ProfileChrome, nil
	}
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Profiles() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", name)
}

// Options configures Transport.
type Options struct {
	Profile Profile
	// Proxy selects a proxy per request. Nil means no proxy.
	Proxy func(*http.Request) (*url.URL, error)
	// RootCAs overrides the system roots, mainly for tests against local TLS servers.
	RootCAs *x509.CertPool
}

// helloIDs returns the candidate hellos for p; a dial picks one at random.
func helloIDs(p Profile) ([]utls.ClientHelloID, error) {
	switch p {
	case ProfileChrome:
		return []utls.ClientHelloID{utls.HelloChrome_Auto}, nil
	case ProfileFirefox:
		return []utls.ClientHelloID{utls.HelloFirefox_Auto}, nil
	case ProfileSafari:
		return []utls.ClientHelloID{utls.HelloIOS_Auto}, nil
	case ProfileRandom:
		return randomPresets, nil
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
}

// Transport returns an *http.Transport that performs TLS handshakes with the
// ClientHello of opts.Profile. ProfileGo yields a plain cloned transport.
func Transport(opts Options) (*http.Transport, error) {
	if opts.Profile == "" {
		opts.Profile = ProfileChrome
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	if opts.Profile == ProfileGo {
		if opts.RootCAs != nil {
			if transport.TLSClientConfig == nil {
				transport.TLSClientConfig = &tls.Config{}
			}
			transport.TLSClientConfig.RootCAs = opts.RootCAs
		}
		return transport, nil
	}

	ids, err := helloIDs(opts.Profile)
	if err != nil {
		return nil, err
	}

	// DialTLSContext replaces the TLS layer, so h2 must stay off.
	transport.ForceAttemptHTTP2 = false

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		id := ids[rand.IntN(len(ids))]
		uConn, err := newUConn(tcpConn, &utls.Config{ServerName: host, RootCAs: opts.RootCAs}, id)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake with %s: %w", host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

// newUConn builds the client conn and pins the ALPN offer to http/1.1 when
// the preset spec can be materialized.
func newUConn(conn net.Conn, cfg *utls.Config, id utls.ClientHelloID) (*utls.UConn, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.UClient(conn, cfg, id), nil
	}

	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("fingerprint: apply %s preset: %w", id.Str(), err)
	}
	return uConn, nil
}
