package logger

import "strings"

// RedactEmail masks a participant or organizer address for safe logging.
// Both halves are masked so a leaked log line identifies neither the
// person nor their mail provider beyond the public suffix:
// "maria.lopez@example.com" → "ma***@e***.com". Short local parts
// (≤2 chars) are fully masked: "ab@example.com" → "***@e***.com".
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	return maskLocal(parts[0]) + "@" + maskDomain(parts[1])
}

func maskLocal(local string) string {
	if len(local) > 2 {
		return local[:2] + "***"
	}
	return "***"
}

// maskDomain keeps the first character and the public suffix.
func maskDomain(domain string) string {
	dot := strings.LastIndex(domain, ".")
	if dot <= 1 {
		return "***"
	}
	return domain[:1] + "***" + domain[dot:]
}
