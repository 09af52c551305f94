// Package security guards the free text users attach to medications,
// profiles and dose logs.
package security

import (
	"unicode"
	"unicode/utf8"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

type TextValidator struct {
	MaxRunes int
	// MaxRepetition caps runs of one repeated rune; zero disables the check.
	MaxRepetition int
	AllowNewlines bool
}

var (
	// ShortText covers names, dosages and relationships.
	ShortText = TextValidator{MaxRunes: 100, MaxRepetition: 20}
	// LongText covers notes and instructions.
	LongText = TextValidator{MaxRunes: 1000, MaxRepetition: 100, AllowNewlines: true}
)

// Check returns a validation error naming field when value is unacceptable.
// Empty values pass; required fields are checked by the caller.
func (v TextValidator) Check(field, value string) error {
	if !utf8.ValidString(value) {
		return apperrors.Validation("%s is not valid UTF-8", field)
	}
	if v.MaxRunes > 0 && utf8.RuneCountInString(value) > v.MaxRunes {
		return apperrors.Validation("%s exceeds %d characters", field, v.MaxRunes)
	}

	for _, r := range value {
		if r == 0 {
			return apperrors.Validation("%s contains a null byte", field)
		}
		if r == '\n' || r == '\r' || r == '\t' {
			if !v.AllowNewlines && r != '\t' {
				return apperrors.Validation("%s must be a single line", field)
			}
			continue
		}
		if unicode.IsControl(r) {
			return apperrors.Validation("%s contains control characters", field)
		}
	}

	if v.MaxRepetition > 0 && hasExcessiveRepetition(value, v.MaxRepetition) {
		return apperrors.Validation("%s repeats one character too often", field)
	}
	return nil
}

// CheckAll runs Check over field/value pairs and returns the first failure.
func (v TextValidator) CheckAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := v.Check(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func hasExcessiveRepetition(input string, maxLen int) bool {
	if len(input) <= maxLen {
		return false
	}

	var prev rune = -1
	consecutiveCount := 0
	for _, r := range input {
		if r == prev {
			consecutiveCount++
			if consecutiveCount > maxLen {
				return true
			}
		} else {
			prev = r
			consecutiveCount = 1
		}
	}
	return false
}
