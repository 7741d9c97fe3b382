// Package urlnorm canonicalizes article URLs and derives the dedup fingerprint from them.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TrackingPrefix marks query keys that never affect article identity.
const TrackingPrefix = "utm_"

// FingerprintLen is the length of a hex-encoded sha256 fingerprint.
const FingerprintLen = sha256.Size * 2

var ErrMalformedURL = errors.New("malformed url")

// Canonicalize drops tracking query parameters and re-serializes the URL.
// Retained parameters keep their original order and encoding.
func Canonicalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedURL)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrMalformedURL, trimmed)
	}

	parsed.RawQuery = stripTracking(parsed.RawQuery)
	parsed.ForceQuery = false
	return parsed.String(), nil
}

// Fingerprint returns the lowercase hex sha256 of the canonical URL.
func Fingerprint(raw string) (string, error) {
	canonical, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// IsFingerprint reports whether value has the shape of a Fingerprint result.
func IsFingerprint(value string) bool {
	if len(value) != FingerprintLen {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if strings.HasPrefix(strings.ToLower(key), TrackingPrefix) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
