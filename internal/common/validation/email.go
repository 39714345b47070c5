package validation

import (
	"regexp"
	"strings"
)

// DisposableDomains are throwaway mailbox providers rejected on forms that
// lead to a sales contact.
var DisposableDomains = []string{
	"tempmail.com",
	"guerrillamail.com",
	"mailinator.com",
	"10minutemail.com",
	"throwaway.email",
	"trashmail.com",
	"temp-mail.org",
	"getnada.com",
}

var (
	looseEmailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)test.*test`),
		regexp.MustCompile(`(?i)asdf`),
		regexp.MustCompile(`(?i)qwerty`),
		regexp.MustCompile(`[0-9]{5,}`),
	}
)

// EmailDomain returns the lower-cased part after the first @, or "".
func EmailDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(domain, '@'); i >= 0 {
		domain = domain[:i]
	}
	return strings.ToLower(domain)
}

func IsDisposableEmail(email string) bool {
	domain := EmailDomain(email)
	if domain == "" {
		return false
	}
	for _, d := range DisposableDomains {
		if domain == d {
			return true
		}
	}
	return false
}

// SuspiciousEmailPattern returns the first pattern the address trips, or ""
// for a plausible address. Addresses without a basic local@host.tld shape
// report that shape as the match.
func SuspiciousEmailPattern(email string) string {
	if !looseEmailPattern.MatchString(email) {
		return looseEmailPattern.String()
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(email) {
			return p.String()
		}
	}
	return ""
}
