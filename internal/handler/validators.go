package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizePhone validates an Uzbek phone number and returns it in the
// canonical +998XXXXXXXXX form. Accepted inputs: with or without +998/998
// prefix, with spaces, dashes or parentheses.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "998") {
		cleaned = cleaned[3:]
	}

	if len(cleaned) != 9 {
		return "", fmt.Errorf("phone must have 9 digits after the 998 code")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone contains non-digit characters")
		}
	}

	return "+998" + cleaned, nil
}

// ParsePassengers accepts a seat count between 1 and 4.
func ParsePassengers(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("passengers must be a number")
	}
	if n < 1 || n > 4 {
		return 0, fmt.Errorf("passengers must be between 1 and 4")
	}
	return n, nil
}

// ParseWeight accepts a package weight in kilograms, up to one ton.
func ParseWeight(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	w, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("weight must be a number")
	}
	if w <= 0 || w > 1000 {
		return 0, fmt.Errorf("weight must be between 0 and 1000 kg")
	}
	return w, nil
}

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04"
)

// ParseDepartureDate accepts DD.MM.YYYY, today or later.
func ParseDepartureDate(raw string, now time.Time) (string, error) {
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), now.Location())
	if err != nil {
		return "", fmt.Errorf("date must look like 15.09.2026")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if parsed.Before(today) {
		return "", fmt.Errorf("date is in the past")
	}
	return parsed.Format(dateLayout), nil
}

// CombineDepartureTime merges a validated date with an HH:MM answer and
// rejects moments already passed.
func CombineDepartureTime(date, rawTime string, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout+" "+timeLayout,
		date+" "+strings.TrimSpace(rawTime), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("time must look like 14:30")
	}
	if t.Before(now) {
		return time.Time{}, fmt.Errorf("departure time is in the past")
	}
	return t, nil
}
