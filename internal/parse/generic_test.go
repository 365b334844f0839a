package parse

import (
	"testing"

	"jobtrack-engine/internal/domain"
)

func TestGenericParser(t *testing.T) {
	cases := []struct {
		name       string
		m          domain.Message
		company    string
		position   string
		confidence float64
	}{
		{
			name:       "dash subject equal to domain name",
			m:          msg("careers@acme-labs.com", "Acme Labs - Application received", ""),
			company:    "Acme Labs",
			position:   domain.UnknownPosition,
			confidence: 0.4,
		},
		{
			name:       "application for position at company",
			m:          msg("talent@hooli.xyz", "Application for Platform Engineer at Hooli", ""),
			company:    "Hooli",
			position:   "Platform Engineer",
			confidence: 0.55,
		},
		{
			name:       "explicit company differs from domain",
			m:          msg("no-reply@mailer.example.com", "Thank you for applying to Initech", ""),
			company:    "Initech",
			position:   domain.UnknownPosition,
			confidence: 0.5,
		},
		{
			name:       "body keyword with domain fallback",
			m:          msg("hr@acme.com", "Hello from Acme", "We have received your application and will review it."),
			company:    "Acme",
			position:   domain.UnknownPosition,
			confidence: 0.3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, ok := Generic{}.Parse(tc.m)
			if !ok {
				t.Fatal("expected an outcome")
			}
			if out.Parsed.CompanyName != tc.company {
				t.Errorf("company = %q, want %q", out.Parsed.CompanyName, tc.company)
			}
			if out.Parsed.PositionTitle != tc.position {
				t.Errorf("position = %q, want %q", out.Parsed.PositionTitle, tc.position)
			}
			if !near(out.Confidence, tc.confidence) {
				t.Errorf("confidence = %v, want %v", out.Confidence, tc.confidence)
			}
			if out.Parsed.Platform != domain.PlatformOther || out.ParserName != "generic" {
				t.Errorf("platform/parser = %q/%q", out.Parsed.Platform, out.ParserName)
			}
		})
	}
}

func TestGenericParserKeywordGate(t *testing.T) {
	m := msg("news@randomblog.com", "Weekly newsletter", "Here are this week's top stories.")
	if out, ok := (Generic{}).Parse(m); ok {
		t.Fatalf("expected no outcome, got %+v", out)
	}

	// A keyword past the first 500 characters does not count.
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	m = msg("news@randomblog.com", "Hello", string(long)+" application")
	if _, ok := (Generic{}).Parse(m); ok {
		t.Fatal("keyword beyond the body window should be ignored")
	}
}

func TestGenericParserNoCompany(t *testing.T) {
	m := msg("no address", "Application status", "")
	if out, ok := (Generic{}).Parse(m); ok {
		t.Fatalf("expected no outcome without any company source, got %+v", out)
	}
}
