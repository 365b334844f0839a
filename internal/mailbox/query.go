package mailbox

import (
	"fmt"
	"strings"
)

// SubjectKeywords select candidate confirmation mail.
var SubjectKeywords = []string{
	"application",
	"applied",
	"thank you for applying",
	"application received",
	"we received your application",
	"application confirmation",
}

// ExcludedSubjectWords drop follow-up and marketing mail.
var ExcludedSubjectWords = []string{"interview", "reminder", "newsletter", "unsubscribe"}

const DefaultLookbackDays = 90

// GmailQuery builds the Gmail search expression for the given lookback.
func GmailQuery(lookbackDays int) string {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return strings.Join([]string{
		"subject:(" + quotedOr(SubjectKeywords) + ")",
		"NOT subject:(" + quotedOr(ExcludedSubjectWords) + ")",
		"-from:me",
		fmt.Sprintf("newer_than:%dd", lookbackDays),
	}, " ")
}

func quotedOr(words []string) string {
	q := make([]string, len(words))
	for i, w := range words {
		q[i] = `"` + w + `"`
	}
	return strings.Join(q, " OR ")
}
