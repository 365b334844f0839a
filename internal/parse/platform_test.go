package parse

import (
	"math"
	"reflect"
	"testing"

	"jobtrack-engine/internal/domain"
)

func msg(from, subject, body string) domain.Message {
	return domain.Message{
		ID:           "m1",
		HistoryID:    "100",
		InternalDate: "1700000000000",
		From:         from,
		Subject:      subject,
		Body:         body,
	}
}

func platformNamed(t *testing.T, name string) Parser {
	t.Helper()
	for _, p := range PlatformParsers() {
		if p.Name() == name {
			return p
		}
	}
	t.Fatalf("no platform parser %q", name)
	return nil
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPlatformParsers(t *testing.T) {
	cases := []struct {
		name       string
		parser     string
		m          domain.Message
		company    string
		position   string
		platform   domain.Platform
		confidence float64
	}{
		{
			name:       "linkedin sent to",
			parser:     "linkedin",
			m:          msg("jobs-noreply@linkedin.com", "Your application was sent to Stripe", ""),
			company:    "Stripe",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformLinkedIn,
			confidence: 0.7,
		},
		{
			name:       "linkedin applied to",
			parser:     "linkedin",
			m:          msg("jobs-noreply@linkedin.com", "You applied to Data Engineer at Netflix", ""),
			company:    "Netflix",
			position:   "Data Engineer",
			platform:   domain.PlatformLinkedIn,
			confidence: 0.9,
		},
		{
			name:       "indeed application to",
			parser:     "indeed",
			m:          msg("Indeed Apply <indeedapply@indeed.com>", "Your application to Globex for Data Analyst", ""),
			company:    "Globex",
			position:   "Data Analyst",
			platform:   domain.PlatformIndeed,
			confidence: 0.9,
		},
		{
			name:       "indeed received",
			parser:     "indeed",
			m:          msg("Indeed <noreply@indeed.com>", "Hooli received your application", ""),
			company:    "Hooli",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformIndeed,
			confidence: 0.7,
		},
		{
			name:       "greenhouse thank you",
			parser:     "greenhouse",
			m:          msg("jobs@boards.greenhouse.io", "Thank you for applying to Acme Corp", ""),
			company:    "Acme Corp",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformGreenhouse,
			confidence: 0.7,
		},
		{
			name:       "greenhouse sender at company",
			parser:     "greenhouse",
			m:          msg("Recruiting at Acme <no-reply@greenhouse.io>", "Next steps", ""),
			company:    "Acme",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformGreenhouse,
			confidence: 0.6,
		},
		{
			name:       "lever dash subject",
			parser:     "lever",
			m:          msg("no-reply@hire.lever.co", "Application for Backend Engineer - Initech", ""),
			company:    "Initech",
			position:   "Backend Engineer",
			platform:   domain.PlatformLever,
			confidence: 0.9,
		},
		{
			name:       "lever display name",
			parser:     "lever",
			m:          msg(`"Acme Careers" <no-reply@hire.lever.co>`, "Thanks for your interest", ""),
			company:    "Acme",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformLever,
			confidence: 0.6,
		},
		{
			name:       "workday confirmation",
			parser:     "workday",
			m:          msg("Initech Careers <noreply@myworkday.com>", "Application Confirmation - Initech", ""),
			company:    "Initech",
			position:   domain.UnknownPosition,
			platform:   domain.PlatformWorkday,
			confidence: 0.7,
		},
		{
			name:       "icims position and sender",
			parser:     "icims",
			m:          msg(`"Umbrella Corp Talent" <jobs@icims.com>`, "Thank you for your application - Staff Accountant", ""),
			company:    "Umbrella Corp",
			position:   "Staff Accountant",
			platform:   domain.PlatformOther,
			confidence: 0.9,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, ok := platformNamed(t, tc.parser).Parse(tc.m)
			if !ok {
				t.Fatal("expected an outcome")
			}
			if out.Parsed.CompanyName != tc.company {
				t.Errorf("company = %q, want %q", out.Parsed.CompanyName, tc.company)
			}
			if out.Parsed.PositionTitle != tc.position {
				t.Errorf("position = %q, want %q", out.Parsed.PositionTitle, tc.position)
			}
			if out.Parsed.Platform != tc.platform {
				t.Errorf("platform = %q, want %q", out.Parsed.Platform, tc.platform)
			}
			if !near(out.Confidence, tc.confidence) {
				t.Errorf("confidence = %v, want %v", out.Confidence, tc.confidence)
			}
			if out.ParserName != tc.parser {
				t.Errorf("parser = %q, want %q", out.ParserName, tc.parser)
			}
			if out.Parsed.Status != domain.StatusApplied {
				t.Errorf("status = %q", out.Parsed.Status)
			}
			if out.Parsed.URL != nil {
				t.Errorf("url = %v, want nil", *out.Parsed.URL)
			}
			if out.Parsed.ContactEmail == nil || *out.Parsed.ContactEmail != SenderEmail(tc.m.From) {
				t.Errorf("contact email = %v", out.Parsed.ContactEmail)
			}
			if !out.Parsed.ApplicationDate.Equal(tc.m.ReceivedAt()) {
				t.Errorf("application date = %v", out.Parsed.ApplicationDate)
			}
		})
	}
}

func TestPlatformParserIndeedBodyFallback(t *testing.T) {
	m := msg("Indeed <noreply@indeed.com>", "Update from Indeed",
		"Thank you for applying to Support Engineer at Hooli. We will be in touch.")
	out, ok := platformNamed(t, "indeed").Parse(m)
	if !ok {
		t.Fatal("expected an outcome")
	}
	if out.Parsed.CompanyName != "Hooli" {
		t.Fatalf("company = %q", out.Parsed.CompanyName)
	}
}

func TestPlatformParserRequiresCompany(t *testing.T) {
	cases := []struct {
		parser string
		m      domain.Message
	}{
		{"lever", msg("Lever <no-reply@hire.lever.co>", "Hello", "")},
		{"icims", msg("iCIMS Recruiting <no-reply@icims.com>", "Hello", "")},
		{"linkedin", msg("jobs-noreply@linkedin.com", "New jobs for you", "")},
		{"workday", msg("noreply@myworkday.com", "Hi", "")},
	}
	for _, tc := range cases {
		if out, ok := platformNamed(t, tc.parser).Parse(tc.m); ok {
			t.Errorf("%s: expected no outcome, got %+v", tc.parser, out)
		}
	}
}

func TestPlatformParserBodyFallbacks(t *testing.T) {
	m := msg("noreply@myworkday.com", "Hi",
		"We are excited you are joining the Acme Robotics team. Role: Robot Wrangler (full time)")
	out, ok := platformNamed(t, "workday").Parse(m)
	if !ok {
		t.Fatal("expected an outcome")
	}
	if out.Parsed.CompanyName != "Acme Robotics" {
		t.Errorf("company = %q", out.Parsed.CompanyName)
	}
	if out.Parsed.PositionTitle != "Robot Wrangler" {
		t.Errorf("position = %q", out.Parsed.PositionTitle)
	}
	if !near(out.Confidence, 0.8) {
		t.Errorf("confidence = %v", out.Confidence)
	}
}

func TestPlatformParserHTMLBody(t *testing.T) {
	m := msg("noreply@myworkday.com", "Hi", "")
	m.HTMLBody = `<html><head><style>.x{}</style></head><body><p>Written on behalf of Initech</p></body></html>`
	out, ok := platformNamed(t, "workday").Parse(m)
	if !ok || out.Parsed.CompanyName != "Initech" {
		t.Fatalf("got %+v, %v", out, ok)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	d := DefaultDispatcher()
	for _, m := range fixtureCorpus() {
		first, ok1 := d.Parse(m)
		for i := 0; i < 3; i++ {
			again, ok2 := d.Parse(m)
			if ok1 != ok2 || !reflect.DeepEqual(first, again) {
				t.Fatalf("parse of %q is not stable", m.Subject)
			}
		}
	}
}

func TestOutcomeInvariants(t *testing.T) {
	d := DefaultDispatcher()
	for _, m := range fixtureCorpus() {
		out, ok := d.Parse(m)
		if !ok {
			continue
		}
		if out.Confidence < 0 || out.Confidence > 1 {
			t.Errorf("%q: confidence %v out of range", m.Subject, out.Confidence)
		}
		if out.Parsed.CompanyName == "" {
			t.Errorf("%q: empty company", m.Subject)
		}
		if out.Parsed.PositionTitle == "" {
			t.Errorf("%q: empty position", m.Subject)
		}
	}
}

func fixtureCorpus() []domain.Message {
	return []domain.Message{
		msg("jobs@boards.greenhouse.io", "Thank you for applying to Acme Corp", ""),
		msg("jobs-noreply@linkedin.com", "Your application was sent to Stripe", ""),
		msg("news@randomblog.com", "Weekly newsletter", "Here are this week's top stories."),
		msg("talent@hooli.xyz", "Application for Platform Engineer at Hooli", ""),
		msg("no-reply@hire.lever.co", "Application for Backend Engineer - Initech", "Role: Backend Engineer"),
		msg("hr@acme.com", "Hello from Acme", "We have received your application and will review it."),
		msg("Indeed <noreply@indeed.com>", "Update from Indeed",
			"Thank you for applying to Support Engineer at Hooli. We will be in touch."),
		msg(`"Umbrella Corp Talent" <jobs@icims.com>`, "Thank you for your application - Staff Accountant", ""),
		msg("alerts@e.linkedin.com", "You applied to Data Engineer at Netflix", "job: Data Engineer"),
	}
}
