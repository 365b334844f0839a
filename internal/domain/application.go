package domain

import "time"

type Platform string

const (
	PlatformLinkedIn       Platform = "linkedin"
	PlatformIndeed         Platform = "indeed"
	PlatformGreenhouse     Platform = "greenhouse"
	PlatformLever          Platform = "lever"
	PlatformWorkday        Platform = "workday"
	PlatformCompanyWebsite Platform = "company_website"
	PlatformOther          Platform = "other"
)

var platforms = map[Platform]bool{
	PlatformLinkedIn:       true,
	PlatformIndeed:         true,
	PlatformGreenhouse:     true,
	PlatformLever:          true,
	PlatformWorkday:        true,
	PlatformCompanyWebsite: true,
	PlatformOther:          true,
}

func (p Platform) Valid() bool { return platforms[p] }

type Status string

const (
	StatusApplied     Status = "applied"
	StatusPhoneScreen Status = "phone_screen"
	StatusInterview   Status = "interview"
	StatusOffer       Status = "offer"
	StatusRejected    Status = "rejected"
	StatusAccepted    Status = "accepted"
	StatusWithdrawn   Status = "withdrawn"
)

type Source string

const (
	SourceManual    Source = "manual"
	SourceGmailSync Source = "gmail_sync"
)

// UnknownPosition stands in for a position title no strategy could recover.
const UnknownPosition = "Unknown Position"

// ExtractedApplication is a parser's structured guess for one message.
type ExtractedApplication struct {
	CompanyName     string    `json:"companyName"`
	PositionTitle   string    `json:"positionTitle"`
	Platform        Platform  `json:"platform"`
	Status          Status    `json:"status"`
	ApplicationDate time.Time `json:"applicationDate"`
	URL             *string   `json:"url"`
	ContactEmail    *string   `json:"contactEmail"`
}

// ParseOutcome pairs an extraction with the confidence of the parser that
// produced it.
type ParseOutcome struct {
	Parsed     ExtractedApplication `json:"parsed"`
	Confidence float64              `json:"confidence"`
	ParserName string               `json:"parserName"`
}

// Application is a persisted job application.
type Application struct {
	ID              string         `json:"id"`
	CompanyName     string         `json:"companyName"`
	PositionTitle   string         `json:"positionTitle"`
	Status          Status         `json:"status"`
	Platform        Platform       `json:"platform"`
	ApplicationDate time.Time      `json:"applicationDate"`
	URL             *string        `json:"url"`
	ContactEmail    *string        `json:"contactEmail"`
	Source          Source         `json:"source"`
	EmailMessageID  *string        `json:"emailMessageId"`
	CreatedAt       time.Time      `json:"createdAt"`
	History         []StatusChange `json:"statusHistory,omitempty"`
}

// StatusChange is one entry in an application's status history.
type StatusChange struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	FromStatus    Status    `json:"fromStatus"`
	ToStatus      Status    `json:"toStatus"`
	Notes         string    `json:"notes"`
	ChangedAt     time.Time `json:"changedAt"`
}
