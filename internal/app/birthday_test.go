package app

import (
	"testing"
	"time"

	"billing_notifier/internal/domain/customer"

	"github.com/stretchr/testify/assert"
)

func TestMatchBirthdays(t *testing.T) {
	roster := []customer.Record{
		{ID: "1", BirthDate: "1990-03-10T00:00:00"},
		{ID: "2", BirthDate: "10/03/1985"},
		{ID: "3", BirthDate: "1985-03-11"},
		{ID: "4", BirthDate: ""},
		{ID: "5", BirthDate: "não informado"},
		{ID: "6", BirthDate: "2000-03-10"},
	}
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	got := MatchBirthdays(roster, today, testLogger())
	ids := make([]string, 0, len(got))
	for _, u := range got {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"1", "2", "6"}, ids)
}

func TestMatchBirthdays_LeapDay(t *testing.T) {
	roster := []customer.Record{{ID: "leap", BirthDate: "2000-02-29"}}

	assert.Empty(t, MatchBirthdays(roster, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), testLogger()))
	assert.Empty(t, MatchBirthdays(roster, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), testLogger()))
	assert.Len(t, MatchBirthdays(roster, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), testLogger()), 1)
}

func TestMatchBirthdays_NoMatchesIsEmptyNotNil(t *testing.T) {
	got := MatchBirthdays(nil, time.Now(), testLogger())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseBirthDate(t *testing.T) {
	tests := []struct {
		in    string
		month time.Month
		day   int
	}{
		{in: "1990-05-15", month: time.May, day: 15},
		{in: "1990-05-15T00:00:00", month: time.May, day: 15},
		{in: "1990-05-15 00:00:00", month: time.May, day: 15},
		{in: "15/05/1990", month: time.May, day: 15},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBirthDate(tt.in)
			if assert.NoError(t, err) {
				assert.Equal(t, tt.month, got.Month())
				assert.Equal(t, tt.day, got.Day())
			}
		})
	}

	_, err := ParseBirthDate("sem data")
	assert.Error(t, err)
}
