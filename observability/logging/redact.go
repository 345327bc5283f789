package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Key fragments that mark a credential. Matching is case-insensitive on the
// attribute key with '-' and '_' ignored.
var sensitiveMarkers = []string{"authorization", "bearer", "jwt", "passphrase", "password", "secret", "privatekey", "token", "headers"}

// Keys that contain a marker but carry asset data rather than credentials.
var notSensitive = map[string]struct{}{
	"tokenid":  {},
	"tokenids": {},
	"tokens":   {},
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("-", "", "_", "", ".", "").Replace(key)
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := normalizeKey(key)
	if _, ok := notSensitive[normalized]; ok {
		return false
	}
	for _, marker := range sensitiveMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// MaskValue returns the placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds a string attribute, masking the value when key is sensitive.
func MaskField(key, value string) slog.Attr {
	if IsSensitive(key) {
		return slog.String(key, MaskValue(value))
	}
	return slog.String(key, value)
}

// redactAttr masks sensitive attributes at the handler so call sites that
// forget MaskField still do not leak credentials. Groups are walked.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		masked := make([]any, 0, len(members))
		for _, member := range members {
			masked = append(masked, redactAttr(member))
		}
		return slog.Group(attr.Key, masked...)
	}
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	return slog.String(attr.Key, RedactedValue)
}
