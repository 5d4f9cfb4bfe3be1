package app

import (
	"time"

	"billing_notifier/internal/domain/customer"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
)

// MatchBirthdays returns the roster entries whose birth date falls on
// today's month and day. Dates that cannot be parsed are skipped; a 29
// February birthday only matches in leap years.
func MatchBirthdays(roster []customer.Record, today time.Time, logger *logrus.Entry) []customer.Record {
	matches := []customer.Record{}
	for _, user := range roster {
		if user.BirthDate == "" {
			continue
		}
		born, err := ParseBirthDate(user.BirthDate)
		if err != nil {
			logger.WithFields(logrus.Fields{"customer_id": user.ID, "birth_date": user.BirthDate}).Debug("Unparsable birth date")
			continue
		}
		if born.Month() == today.Month() && born.Day() == today.Day() {
			matches = append(matches, user)
		}
	}
	return matches
}

// ParseBirthDate accepts the textual formats the customer API is known to
// produce (ISO timestamps, dates, day-first slashed dates).
func ParseBirthDate(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false), dateparse.RetryAmbiguousDateWithSwap(true))
}
