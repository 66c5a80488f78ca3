package validators

import "strings"

// BearerToken strips an optional "Bearer " scheme from an Authorization
// header value. It returns "" when no token is present.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
