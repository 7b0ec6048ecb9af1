package links

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxCodeLength bounds codes accepted on lookup paths.
const MaxCodeLength = 64

// NormalizeURL trims raw and accepts only absolute http(s) URLs with a host.
// Every rejection wraps ErrInvalidURL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return raw, nil
}

// IsValidCode reports whether code could have been issued: non-empty,
// at most MaxCodeLength, and drawn from Alphabet.
func IsValidCode(code string) bool {
	if code == "" || len(code) > MaxCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
