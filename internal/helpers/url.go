package helpers

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
}

// CanonicalURL normalises a URL for within-run deduplication of resolved
// article URLs: lowercased scheme/host, default ports and fragments removed,
// tracking query parameters (utm_*, fbclid, ...) stripped and the remaining
// parameters sorted deterministically. A missing scheme defaults to https.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			parsed, err = url.Parse("https:" + raw)
		} else {
			parsed, err = url.Parse("https://" + raw)
		}
		if err != nil {
			return "", err
		}
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", errors.New("url missing host")
	}
	switch parsed.Scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			for _, value := range values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
		parsed.RawQuery = b.String()
	}

	return parsed.String(), nil
}
