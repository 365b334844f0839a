package parse

import (
	"regexp"

	"jobtrack-engine/internal/domain"
)

func re(s string) *regexp.Regexp { return regexp.MustCompile(`(?i)` + s) }

// PlatformParsers returns the known platform parsers in registry order.
// Earlier entries win suffix-domain ties in the dispatcher.
func PlatformParsers() []DomainParser {
	return []DomainParser{
		&platformParser{
			name:     "linkedin",
			platform: domain.PlatformLinkedIn,
			domains:  []string{"linkedin.com", "e.linkedin.com"},
			brand:    "linkedin",
			subject: []rule{
				{re: re(`your application was sent to\s+(.+)`), company: 1},
				{re: re(`you applied to\s+(.+?)\s+at\s+(.+)`), position: 1, company: 2},
			},
			sender:      reDisplayName,
			senderGroup: 1,
		},
		&platformParser{
			name:     "indeed",
			platform: domain.PlatformIndeed,
			domains:  []string{"indeed.com", "indeedmail.com", "indeed.email"},
			brand:    "indeed",
			subject: []rule{
				{re: re(`your application to\s+(.+?)\s+for\s+(.+)`), company: 1, position: 2},
				{re: re(`application for\s+(.+?)\s+at\s+(.+)`), position: 1, company: 2},
				{re: re(`(.+?)\s+received your application`), company: 1, keep: true},
			},
			sender:      reDisplayName,
			senderGroup: 1,
			body: []rule{
				{re: re(`thank you for applying (?:to|for)\s+(.+?)\s+at\s+(.+?)(?:\.|!|\s{2})`), position: 1, company: 2, keep: true},
			},
		},
		&platformParser{
			name:     "greenhouse",
			platform: domain.PlatformGreenhouse,
			domains:  []string{"greenhouse.io", "greenhouse-mail.io"},
			brand:    "greenhouse",
			subject: []rule{
				{re: re(`application for\s+(.+?)\s+at\s+(.+)`), position: 1, company: 2},
				{re: re(`thank you for (?:applying|your (?:interest|application))\s*(?:to|at|with)?\s*(.+)`), company: 1, keep: true},
			},
			// "Recruiting at Acme <no-reply@greenhouse.io>"
			sender:      re(`(.+?)\s+at\s+(.+?)\s*<`),
			senderGroup: 2,
		},
		&platformParser{
			name:     "lever",
			platform: domain.PlatformLever,
			domains:  []string{"hire.lever.co", "lever.co"},
			brand:    "lever",
			subject: []rule{
				{re: re(`your application (?:to|at|with)\s+(.+)`), company: 1},
				{re: re(`application for\s+(.+?)\s*[-–—]\s*(.+)`), position: 1, company: 2},
			},
			sender:      reDisplayName,
			senderGroup: 1,
		},
		&platformParser{
			name:     "workday",
			platform: domain.PlatformWorkday,
			domains:  []string{"myworkday.com", "wd5.myworkdaysite.com"},
			brand:    "workday",
			subject: []rule{
				{re: re(`application (?:confirmation|received|submitted)\s*[-–—:]\s*(.+)`), company: 1},
				{re: re(`thank you for (?:applying|your application)\s*(?:to|at|with)?\s*(.+)`), company: 1, keep: true},
			},
			sender:      reDisplayName,
			senderGroup: 1,
		},
		&platformParser{
			// iCIMS has no dedicated platform tag.
			name:     "icims",
			platform: domain.PlatformOther,
			domains:  []string{"icims.com"},
			brand:    "icims",
			subject: []rule{
				{re: re(`thank you for your application\s*[-–—:]\s*(.+)`), position: 1},
				{re: re(`application received (?:for\s+(.+?)\s+)?at\s+(.+)`), position: 1, company: 2},
			},
			sender:      reDisplayName,
			senderGroup: 1,
		},
	}
}
