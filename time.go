package climb

import "time"

// hasExpired reports whether an absolute expiry is missing or already past
func hasExpired(expires *time.Time, now time.Time) bool {
	if expires == nil {
		return true
	}
	return !now.Before(*expires)
}

// startOfDay truncates t to midnight UTC
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayKey formats t as a calendar day in UTC
func dayKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
