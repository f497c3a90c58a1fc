package logger

import "strings"

// RedactEmail masks the local part of an address:
// "jane.doe@example.com" becomes "ja***@example.com" and local parts of two
// characters or fewer are masked entirely. The domain stays readable since
// per-domain deliverability is what operators debug.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	name, host := email[:at], email[at+1:]
	if len(name) > 2 {
		return name[:2] + "***@" + host
	}
	return "***@" + host
}
