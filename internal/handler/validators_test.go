package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+998901234567", "+998901234567", false},
		{"998901234567", "+998901234567", false},
		{"901234567", "+998901234567", false},
		{"90 123 45 67", "+998901234567", false},
		{"+998 (90) 123-45-67", "+998901234567", false},
		{"12345", "", true},
		{"+7 900 123 45 67", "", true},
		{"90123456a", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParsePassengers(t *testing.T) {
	n, err := ParsePassengers(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"0", "5", "abc", ""} {
		_, err := ParsePassengers(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseWeight(t *testing.T) {
	w, err := ParseWeight("2,5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, w)

	for _, bad := range []string{"0", "-1", "1001", "heavy"} {
		_, err := ParseWeight(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDepartureDateAndTime(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	date, err := ParseDepartureDate("15.09.2026", now)
	require.NoError(t, err)
	assert.Equal(t, "15.09.2026", date)

	// Today is allowed, yesterday is not.
	_, err = ParseDepartureDate("14.09.2026", now)
	assert.NoError(t, err)
	_, err = ParseDepartureDate("13.09.2026", now)
	assert.Error(t, err)
	_, err = ParseDepartureDate("2026-09-15", now)
	assert.Error(t, err)

	dt, err := CombineDepartureTime("15.09.2026", "14:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC), dt)

	// Same day but already passed.
	_, err = CombineDepartureTime("14.09.2026", "09:00", now)
	assert.Error(t, err)
	_, err = CombineDepartureTime("15.09.2026", "25:99", now)
	assert.Error(t, err)
}

func TestParseCallbackID(t *testing.T) {
	id, ok := parseCallbackID("complete_order_42", "complete_order_")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseCallbackID("complete_order_x", "complete_order_")
	assert.False(t, ok)
}
