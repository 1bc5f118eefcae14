package observability

import (
	"net/url"
	"strings"
)

var sensitiveQueryParams = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"id_token":      {},
	"refresh_token": {},
	"api_key":       {},
	"key":           {},
	"password":      {},
	"secret":        {},
	"signature":     {},
}

// SanitizeURL masks credential-bearing query parameters before logging.
func SanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	clean := *u
	query := clean.Query()
	changed := false
	for key := range query {
		if _, ok := sensitiveQueryParams[strings.ToLower(key)]; ok {
			query.Set(key, "REDACTED")
			changed = true
		}
	}
	if changed {
		clean.RawQuery = query.Encode()
	}
	clean.User = nil
	return clean.String()
}
