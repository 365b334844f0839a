package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a trimmed, lower-cased copy of cfg and the
// problems found in it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.Mailbox.Provider = strings.ToLower(strings.TrimSpace(out.Mailbox.Provider))
	out.Mailbox.IMAP.Host = strings.TrimSpace(out.Mailbox.IMAP.Host)
	out.Mailbox.IMAP.Username = strings.TrimSpace(out.Mailbox.IMAP.Username)
	out.Mailbox.IMAP.Folder = strings.TrimSpace(out.Mailbox.IMAP.Folder)
	out.Mailbox.SearchQuery = strings.TrimSpace(out.Mailbox.SearchQuery)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		out.Log.Level = "info"
	default:
		res.addErr("log.level must be one of debug, info, warn, error (got %q)", out.Log.Level)
	}

	switch out.Mailbox.Provider {
	case ProviderGmail:
		if out.Mailbox.Gmail.ClientID == "" || out.Mailbox.Gmail.ClientSecret == "" {
			res.addWarn("mailbox.gmail.client_id/client_secret are empty; stored tokens cannot be refreshed.")
		}
	case ProviderIMAP:
		// password is not checked here; it is in the keychain
		if out.Mailbox.IMAP.Host == "" {
			res.addErr("mailbox.imap.host is required when mailbox.provider=imap")
		}
		if out.Mailbox.IMAP.Port <= 0 || out.Mailbox.IMAP.Port > 65535 {
			res.addErr("mailbox.imap.port must be 1..65535")
		}
		if out.Mailbox.IMAP.Username == "" {
			res.addErr("mailbox.imap.username is required when mailbox.provider=imap")
		}
		if out.Mailbox.IMAP.Folder == "" {
			out.Mailbox.IMAP.Folder = "INBOX"
		}
		if out.Mailbox.SearchQuery != "" {
			res.addWarn("mailbox.search_query only applies to gmail and is ignored for imap.")
		}
	default:
		res.addErr("mailbox.provider must be gmail or imap (got %q)", out.Mailbox.Provider)
	}

	if out.Mailbox.LookbackDays <= 0 {
		res.addErr("mailbox.lookback_days must be > 0")
	} else if out.Mailbox.LookbackDays > 365 {
		res.addWarn("mailbox.lookback_days is %d; a full sync will scan a lot of mail.", out.Mailbox.LookbackDays)
	}

	if out.Mailbox.RequestsPerSecond < 0 {
		res.addErr("mailbox.requests_per_second must be >= 0")
	}
	if out.Mailbox.Burst < 0 {
		res.addErr("mailbox.burst must be >= 0")
	}

	if out.Sync.IntervalMinutes < 0 {
		res.addErr("sync.interval_minutes must be >= 0")
	} else if out.Sync.IntervalMinutes > 0 && out.Sync.IntervalMinutes < 5 {
		res.addWarn("sync.interval_minutes is very low (%d) and may hit mailbox rate limits.", out.Sync.IntervalMinutes)
	}

	if t := out.Sync.AutoImportThreshold; t <= 0 || t > 1 {
		res.addErr("sync.auto_import_threshold must be in (0, 1]")
	}

	return out, res
}
