package mailer

import "strings"

// RedactEmail masks an address for logging: "john@gmail.com" becomes
// "j***@gmail.com". A value without "@" is masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
