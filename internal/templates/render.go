package templates

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Rendered is a template filled in with one payload.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
	// Version is nil when the fallback content was used.
	Version *int
	// Missing lists tokens that had no value and were left in place.
	Missing []string
}

// Tokens returns the distinct placeholder names used across the given bodies,
// sorted.
func Tokens(bodies ...string) []string {
	seen := map[string]struct{}{}
	for _, body := range bodies {
		for _, match := range tokenPattern.FindAllStringSubmatch(body, -1) {
			seen[match[1]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// Render substitutes payload fields into tpl. Values are HTML-escaped in the
// HTML body only. Unknown tokens stay as written.
func Render(tpl models.NotificationTemplate, payload payloads.Payload) Rendered {
	fields := payload.Fields()
	missing := map[string]struct{}{}

	replace := func(body string, escape bool) string {
		return tokenPattern.ReplaceAllStringFunc(body, func(match string) string {
			name := tokenPattern.FindStringSubmatch(match)[1]
			value, ok := fields[name]
			if !ok {
				missing[name] = struct{}{}
				return match
			}
			if escape {
				return html.EscapeString(value)
			}
			return value
		})
	}

	version := tpl.Version
	out := Rendered{
		Subject: replace(tpl.Subject, false),
		HTML:    replace(tpl.BodyHTML, true),
		Text:    replace(tpl.BodyText, false),
		Version: &version,
	}
	for name := range missing {
		out.Missing = append(out.Missing, name)
	}
	sort.Strings(out.Missing)
	return out
}

// Fallback builds generic content for (type, channel) pairs without an active
// template.
func Fallback(payload payloads.Payload) Rendered {
	title := payload.Title()
	summary := payload.Summary()

	var body strings.Builder
	body.WriteString("<p><strong>")
	body.WriteString(html.EscapeString(title))
	body.WriteString("</strong></p>")
	for _, line := range strings.Split(summary, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		body.WriteString("<p>")
		body.WriteString(html.EscapeString(line))
		body.WriteString("</p>")
	}

	return Rendered{
		Subject: title,
		HTML:    body.String(),
		Text:    summary,
	}
}
