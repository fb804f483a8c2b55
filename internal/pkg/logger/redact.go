package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactSecret masks a credential, keeping the last four characters of
// long values so operators can tell tokens apart.
// "EAAGm0PX4ZCpsBA1234" → "***1234"
func RedactSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

var secretKeys = []string{"token", "secret", "password", "api_key", "apikey", "authorization"}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
