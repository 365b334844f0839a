package parse

import (
	"regexp"
	"strings"

	"jobtrack-engine/internal/domain"
)

var (
	reBracketAddr  = regexp.MustCompile(`<([^>]+)>`)
	reCommonSubdom = regexp.MustCompile(`(?i)^(www|mail|e|email|noreply|no-reply|notifications?)\.`)
)

// SenderEmail returns the bracketed address of a "Name <addr>" header, or the
// whole header lower-cased when there is none.
func SenderEmail(from string) string {
	if m := reBracketAddr.FindStringSubmatch(from); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(from)
}

// SenderDomain returns the part of the sender address after '@', or "".
func SenderDomain(from string) string {
	parts := strings.Split(SenderEmail(from), "@")
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}

// DomainToCompanyName turns "mail.acme-labs.com" into "Acme Labs".
func DomainToCompanyName(d string) string {
	name := reCommonSubdom.ReplaceAllString(d, "")
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return titleWords(name)
}

// titleWords upper-cases every ASCII letter that starts a word.
func titleWords(s string) string {
	b := []byte(s)
	for i := range b {
		if i > 0 && isWordByte(b[i-1]) {
			continue
		}
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var positionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:position|role|job)\s*(?:of|:|-|for)?\s*["']?([A-Z][A-Za-z\s/&,.-]{2,60})["']?`),
	regexp.MustCompile(`(?i)(?:applied\s+(?:for|to)\s+(?:the\s+)?(?:position\s+(?:of\s+)?)?)?["']([A-Z][A-Za-z\s/&,.-]{2,60})["']`),
	regexp.MustCompile(`(?i)(?:application\s+for\s+(?:the\s+)?(?:position\s+(?:of\s+)?)?)([A-Z][A-Za-z\s/&,.-]{2,60})`),
	regexp.MustCompile(`(?i)(?:thank you for applying\s+(?:for\s+(?:the\s+)?)?(?:position\s+(?:of\s+)?)?)([A-Z][A-Za-z\s/&,.-]{2,60})`),
}

// PositionFromBody returns the first position-like phrase in text, limited to
// 4..79 characters.
func PositionFromBody(text string) (string, bool) {
	return firstMatch(text, positionPatterns, 3, 80)
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:at|with|from|join(?:ing)?)\s+(?:the\s+)?([A-Z][A-Za-z\s&.',-]{1,50}?)(?:\s*[.,!]|\s+(?:team|group|inc|corp|llc|ltd))`),
	regexp.MustCompile(`(?i)(?:thank you for (?:your )?(?:interest|applying) (?:in|at|to|with)\s+)([A-Z][A-Za-z\s&.',-]{1,50})`),
	regexp.MustCompile(`(?i)(?:on behalf of\s+)([A-Z][A-Za-z\s&.',-]{1,50})`),
}

// CompanyFromBody returns the first company-like phrase in text, limited to
// 2..59 characters.
func CompanyFromBody(text string) (string, bool) {
	return firstMatch(text, companyPatterns, 1, 60)
}

func firstMatch(text string, patterns []*regexp.Regexp, minExcl, maxExcl int) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil || m[1] == "" {
			continue
		}
		s := strings.TrimSpace(m[1])
		if len(s) > minExcl && len(s) < maxExcl {
			return s, true
		}
	}
	return "", false
}

var applicationKeywords = []string{
	"application",
	"applied",
	"thank you for applying",
	"application received",
	"we received your application",
	"application confirmation",
	"your submission",
}

// SubjectHasApplicationKeyword reports whether subject mentions an
// application in any of the usual phrasings.
func SubjectHasApplicationKeyword(subject string) bool {
	return containsAny(strings.ToLower(subject), applicationKeywords)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// BodyText prefers the plain-text body and falls back to the HTML body.
func BodyText(m domain.Message) string {
	if m.Body != "" {
		return m.Body
	}
	if m.HTMLBody != "" {
		return HTMLToText(m.HTMLBody)
	}
	return ""
}
