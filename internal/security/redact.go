// Package security masks notification credentials before they reach logs or output.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked.
var sensitiveParams = map[string]bool{
	"token":        true,
	"apikey":       true,
	"api_key":      true,
	"key":          true,
	"secret":       true,
	"password":     true,
	"access_token": true,
	"auth_token":   true,
	"webhook":      true,
}

var (
	// token=..., apikey: ... in free text such as error messages
	keyValuePattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|access[_-]?token|auth[_-]?token|token|bearer)([=:]\s*)["']?([^\s"'&]+)["']?`)
	// long opaque path segments (Slack, Discord, Telegram bot tokens)
	tokenSegment = regexp.MustCompile(`^[A-Za-z0-9_:\-]{16,}$`)
	urlPattern   = regexp.MustCompile(`[a-z][a-z0-9+.\-]*://[^\s"']+`)
)

// MaskCredential keeps a short prefix and suffix of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// RedactURL masks the user info, token-like path segments and sensitive
// query values of a notification or webhook URL. Unparseable input is
// masked whole.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return MaskCredential(raw)
	}

	if u.User != nil {
		name := u.User.Username()
		if pass, ok := u.User.Password(); ok {
			u.User = url.UserPassword(name, MaskCredential(pass))
		} else {
			u.User = url.User(MaskCredential(name))
		}
	}

	if u.Path != "" {
		segments := strings.Split(u.Path, "/")
		for i, s := range segments {
			if tokenSegment.MatchString(s) {
				segments[i] = MaskCredential(s)
			}
		}
		u.Path = strings.Join(segments, "/")
		u.RawPath = ""
	}

	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for k, vs := range q {
			if !sensitiveParams[strings.ToLower(k)] {
				continue
			}
			for i := range vs {
				vs[i] = MaskCredential(vs[i])
			}
			changed = true
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	// Masking stars must stay readable rather than percent-encoded.
	return strings.ReplaceAll(u.String(), "%2A", "*")
}

// RedactURLs applies RedactURL to every element.
func RedactURLs(raws []string) []string {
	out := make([]string, len(raws))
	for i, r := range raws {
		out[i] = RedactURL(r)
	}
	return out
}

// MaskString redacts URLs and key=value credentials inside free text.
func MaskString(input string) string {
	result := urlPattern.ReplaceAllStringFunc(input, RedactURL)
	return keyValuePattern.ReplaceAllStringFunc(result, func(match string) string {
		parts := keyValuePattern.FindStringSubmatch(match)
		if len(parts) != 4 || strings.Contains(parts[3], "*") {
			return match
		}
		return parts[1] + parts[2] + MaskCredential(parts[3])
	})
}
