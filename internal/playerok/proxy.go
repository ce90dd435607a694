package playerok

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeProxy converts the proxy notations accepted in config into a URL
// the HTTP transport understands. Supported forms:
//
//	ip:port
//	user:pass@ip:port
//	ip:port:user:pass
//	socks5://[user:pass@]ip:port (and socks4://)
//
// SOCKS URLs pass through unchanged; everything else becomes http://.
func NormalizeProxy(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "socks5://") || strings.HasPrefix(raw, "socks4://") {
		if _, err := url.Parse(raw); err != nil {
			return "", fmt.Errorf("parse socks proxy: %w", err)
		}
		return raw, nil
	}

	clean := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")

	// ip:port:user:pass has three colons outside of any @ part.
	if !strings.Contains(clean, "@") {
		if parts := strings.Split(clean, ":"); len(parts) == 4 {
			clean = fmt.Sprintf("%s:%s@%s:%s", parts[2], parts[3], parts[0], parts[1])
		}
	}

	normalized := "http://" + clean
	if _, err := url.Parse(normalized); err != nil {
		return "", fmt.Errorf("parse proxy %q: %w", raw, err)
	}
	return normalized, nil
}
