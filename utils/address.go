package utils

import (
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
)

// EmailAddress is an address split into its local part and a normalized domain.
type EmailAddress struct {
	Local  string
	Domain string
}

// ParseAddress splits an address on its last '@'. The domain is trimmed and
// lower-cased; a trailing dot is dropped.
func ParseAddress(email string) (EmailAddress, error) {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return EmailAddress{}, fmt.Errorf("%w: %q has no '@'", ErrInvalidAddress, email)
	}

	local := strings.TrimSpace(email[:at])
	domain := NormalizeDomain(email[at+1:])
	if domain == "" {
		return EmailAddress{}, fmt.Errorf("%w: %q has an empty domain", ErrInvalidAddress, email)
	}
	return EmailAddress{Local: local, Domain: domain}, nil
}

// NormalizeDomain lower-cases and trims a domain name.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// String returns local@domain with the normalized domain.
func (a EmailAddress) String() string {
	return a.Local + "@" + a.Domain
}

// ValidateEmail reports whether email is syntactically valid.
func ValidateEmail(email string) bool {
	return checkmail.ValidateFormat(strings.TrimSpace(email)) == nil
}
