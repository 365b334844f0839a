package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"jobtrack-engine/internal/config"
)

// KeyringService groups the engine's entries in the OS keychain.
const KeyringService = "jobtrack"

var ErrNoPassword = errors.New("IMAP password not found in keychain")

func GetIMAPPassword(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", ErrNoPassword
	}
	pw, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(pw) == "") {
		return "", ErrNoPassword
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return pw, nil
}

func SetIMAPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

// DeleteIMAPPassword removes the stored password. A missing entry is not an
// error.
func DeleteIMAPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return nil
	}
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// IMAPKeyringAccount names the keychain entry for the configured mailbox.
// It is empty when no IMAP account is configured.
func IMAPKeyringAccount(cfg config.Config) string {
	c := cfg.Mailbox.IMAP
	if c.Username == "" || c.Host == "" {
		return ""
	}
	return fmt.Sprintf("jobtrack:imap:%s@%s", c.Username, c.Host)
}
