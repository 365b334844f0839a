package parse

import (
	"math"
	"regexp"
	"strings"

	"jobtrack-engine/internal/domain"
)

// Parser turns a message into a ParseOutcome, or reports ok=false when the
// message does not yield an application. Parsers are pure.
type Parser interface {
	Name() string
	Parse(m domain.Message) (domain.ParseOutcome, bool)
}

const (
	platformBase     = 0.6
	platformPosBonus = 0.2
	keywordBonus     = 0.1
)

// rule extracts company and/or position from one regexp. A group index of 0
// means the rule does not supply that field. With keep set, the rule only
// fills fields that are still empty.
type rule struct {
	re       *regexp.Regexp
	company  int
	position int
	keep     bool
}

func (r rule) apply(s string, company, position *string) {
	m := r.re.FindStringSubmatch(s)
	if m == nil {
		return
	}
	set := func(dst *string, group int) {
		if group == 0 || group >= len(m) {
			return
		}
		v := strings.TrimSpace(m[group])
		if v == "" || (r.keep && *dst != "") {
			return
		}
		*dst = v
	}
	set(position, r.position)
	set(company, r.company)
}

var (
	reDisplayName   = regexp.MustCompile(`^"?(.+?)"?\s*<`)
	reGenericSuffix = regexp.MustCompile(`(?i)\b(careers?|recruiting|talent|hr|jobs?)\b`)
)

// senderCompany derives a company name from the From header. pattern selects
// the capture (group) holding the candidate; names containing brand are
// rejected.
func senderCompany(from string, pattern *regexp.Regexp, group int, brand string) (string, bool) {
	m := pattern.FindStringSubmatch(from)
	if m == nil || group >= len(m) {
		return "", false
	}
	name := reGenericSuffix.ReplaceAllString(m[group], " ")
	name = strings.Join(strings.Fields(name), " ")
	if len(name) <= 1 {
		return "", false
	}
	if brand != "" && strings.Contains(strings.ToLower(name), brand) {
		return "", false
	}
	return name, true
}

// platformParser implements the shared contract for one platform family:
// subject rules, then the sender header, then the body.
type platformParser struct {
	name     string
	platform domain.Platform
	domains  []string
	brand    string
	subject  []rule
	// sender is the From-header pattern; senderGroup holds the company.
	sender      *regexp.Regexp
	senderGroup int
	// body rules run before the generic body extraction when the company is
	// still unknown.
	body []rule
}

func (p *platformParser) Name() string { return p.name }

func (p *platformParser) Parse(m domain.Message) (domain.ParseOutcome, bool) {
	body := BodyText(m)

	var company, position string
	for _, r := range p.subject {
		r.apply(m.Subject, &company, &position)
	}

	if company == "" && p.sender != nil {
		if c, ok := senderCompany(m.From, p.sender, p.senderGroup, p.brand); ok {
			company = c
		}
	}

	if position == "" {
		if pos, ok := PositionFromBody(body); ok {
			position = pos
		}
	}

	if company == "" {
		for _, r := range p.body {
			r.apply(body, &company, &position)
		}
	}
	if company == "" {
		if c, ok := CompanyFromBody(body); ok {
			company = c
		}
	}

	if company == "" {
		return domain.ParseOutcome{}, false
	}

	confidence := platformBase
	if position != "" {
		confidence += platformPosBonus
	}
	if SubjectHasApplicationKeyword(m.Subject) {
		confidence += keywordBonus
	}

	return outcome(m, company, position, p.platform, confidence, p.name), true
}

func outcome(m domain.Message, company, position string, platform domain.Platform, confidence float64, parser string) domain.ParseOutcome {
	if position == "" {
		position = domain.UnknownPosition
	}
	contact := SenderEmail(m.From)
	return domain.ParseOutcome{
		Parsed: domain.ExtractedApplication{
			CompanyName:     company,
			PositionTitle:   position,
			Platform:        platform,
			Status:          domain.StatusApplied,
			ApplicationDate: m.ReceivedAt(),
			ContactEmail:    &contact,
		},
		Confidence: math.Min(confidence, 1),
		ParserName: parser,
	}
}

func (p *platformParser) Domains() []string { return p.domains }
