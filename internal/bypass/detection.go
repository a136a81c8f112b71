package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/igmention/internal/storage"
)

// Detector examines a fetched page to decide whether the search engine (or a
// WAF in front of it) served a challenge or rate-limit response instead of
// results.
type Detector func(p *storage.Page) (detected bool, source string)

// SearchMarkers are body fragments, matched case-insensitively, that mark a
// search-engine challenge page.
var SearchMarkers = []string{
	"captcha",
	"unusual traffic",
	"/sorry/index",
}

// DefaultDetectors returns the standard detectors in evaluation order.
func DefaultDetectors() []Detector {
	return []Detector{
		detectRateLimit,
		MarkerDetector("SearchChallenge", SearchMarkers...),
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs p through the detectors and records the first hit on the page.
func Analyze(p *storage.Page, detectors []Detector) bool {
	if p == nil {
		return false
	}
	for _, d := range detectors {
		if detected, source := d(p); detected {
			p.Blocked = true
			p.BlockReason = source
			return true
		}
	}
	p.Blocked = false
	p.BlockReason = ""
	return false
}

// MarkerDetector reports source when any marker appears in the body.
// Matching ignores case.
func MarkerDetector(source string, markers ...string) Detector {
	lowered := make([][]byte, 0, len(markers))
	for _, m := range markers {
		if m == "" {
			continue
		}
		lowered = append(lowered, []byte(strings.ToLower(m)))
	}
	return func(p *storage.Page) (bool, string) {
		if len(p.Body) == 0 || len(lowered) == 0 {
			return false, ""
		}
		body := bytes.ToLower(p.Body)
		for _, m := range lowered {
			if bytes.Contains(body, m) {
				return true, source
			}
		}
		return false, ""
	}
}

func getHeader(headers map[string][]string, key string) string {
	return http.Header(headers).Get(key)
}

func detectRateLimit(p *storage.Page) (bool, string) {
	if p.StatusCode == http.StatusTooManyRequests {
		return true, "RateLimit"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(p *storage.Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(p.Body, []byte("cf-turnstile")) ||
		bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(p *storage.Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "akamai") {
		return true, "Akamai"
	}
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(p *storage.Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(getHeader(p.Headers, "Server")), "datadome") ||
		getHeader(p.Headers, "X-DataDome") != "" ||
		getHeader(p.Headers, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(p.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(p *storage.Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if getHeader(p.Headers, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bytes.Contains(p.Body, []byte("client.perimeterx.net")) || bytes.Contains(p.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}
