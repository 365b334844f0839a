package parse

import (
	"strings"

	"jobtrack-engine/internal/domain"
)

const (
	genericBase          = 0.3
	genericPosBonus      = 0.15
	genericExplicitBonus = 0.1
	bodyKeywordWindow    = 500
)

var bodyKeywords = []string{
	"application",
	"applied",
	"thank you for applying",
	"received your application",
}

var genericSubject = []rule{
	// "Acme - Application received"
	{re: re(`^(.+?)\s*[-–—:]\s*(?:application|thank you)`), company: 1},
	{re: re(`application (?:for\s+(.+?)\s+)?at\s+(.+)`), position: 1, company: 2},
	{re: re(`thank you for applying\s+(?:(?:for|to)\s+(.+?)\s+)?(?:at|to|with)\s+(.+)`), position: 1, company: 2},
}

// Generic handles mail from senders no platform parser claims. It only
// accepts messages that mention an application in the subject or near the
// top of the body.
type Generic struct{}

func (Generic) Name() string { return "generic" }

func (Generic) Parse(m domain.Message) (domain.ParseOutcome, bool) {
	body := BodyText(m)
	senderDomain := SenderDomain(m.From)
	subjectKeyword := SubjectHasApplicationKeyword(m.Subject)

	if !subjectKeyword && !containsAny(strings.ToLower(prefix(body, bodyKeywordWindow)), bodyKeywords) {
		return domain.ParseOutcome{}, false
	}

	var company, position string
	for _, r := range genericSubject {
		r.apply(m.Subject, &company, &position)
	}

	if position == "" {
		if pos, ok := PositionFromBody(body); ok {
			position = pos
		}
	}
	if company == "" {
		if c, ok := CompanyFromBody(body); ok {
			company = c
		}
	}
	if company == "" && senderDomain != "" {
		company = DomainToCompanyName(senderDomain)
	}
	if company == "" {
		return domain.ParseOutcome{}, false
	}

	confidence := genericBase
	if position != "" {
		confidence += genericPosBonus
	}
	if subjectKeyword {
		confidence += keywordBonus
	}
	if company != DomainToCompanyName(senderDomain) {
		confidence += genericExplicitBonus
	}

	return outcome(m, company, position, domain.PlatformOther, confidence, "generic"), true
}

// prefix returns at most n characters of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
