package security

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

func TestTextValidator_ValidInput(t *testing.T) {
	validInputs := []string{
		"",
		"Aspirin",
		"100mg",
		"Take with food, not on an empty stomach.",
		"Grand-père",
		strings.Repeat("ab", 40),
	}

	for _, input := range validInputs {
		if err := ShortText.Check("name", input); err != nil {
			t.Errorf("Valid input rejected: %q (error: %v)", input, err)
		}
	}
}

func TestTextValidator_TooLong(t *testing.T) {
	v := TextValidator{MaxRunes: 10}

	if err := v.Check("name", strings.Repeat("é", 10)); err != nil {
		t.Errorf("Input at the limit rejected: %v", err)
	}
	err := v.Check("name", strings.Repeat("é", 11))
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Long input not rejected, got: %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "name exceeds 10 characters") {
		t.Errorf("Error does not name the field: %v", err)
	}
}

func TestTextValidator_NullByte(t *testing.T) {
	inputsWithNull := []string{
		"hello\x00world",
		"\x00",
		"test\x00",
	}

	for _, input := range inputsWithNull {
		if err := LongText.Check("notes", input); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Null byte not detected in: %q", input)
		}
	}
}

func TestTextValidator_ControlCharacters(t *testing.T) {
	if err := ShortText.Check("name", "bell\x07"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Control character not rejected, got: %v", err)
	}
	if err := ShortText.Check("name", "tab\tseparated"); err != nil {
		t.Errorf("Tab rejected: %v", err)
	}
}

func TestTextValidator_Newlines(t *testing.T) {
	multiLine := "first line\nsecond line\r\n"

	if err := ShortText.Check("dosage", multiLine); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Newline allowed in short text")
	}
	if err := LongText.Check("notes", multiLine); err != nil {
		t.Errorf("Newline rejected in long text: %v", err)
	}
}

func TestTextValidator_InvalidUTF8(t *testing.T) {
	if err := LongText.Check("notes", "bad \xff byte"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Invalid UTF-8 not rejected")
	}
}

func TestTextValidator_RepetitiveContent(t *testing.T) {
	v := TextValidator{MaxRunes: 1000, MaxRepetition: 20}

	if err := v.Check("notes", strings.Repeat("!", 21)); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Repetitive content not detected")
	}
	if err := v.Check("notes", strings.Repeat("!", 20)); err != nil {
		t.Errorf("Run at the limit rejected: %v", err)
	}
}

func TestTextValidator_DisabledRepetitionCheck(t *testing.T) {
	v := TextValidator{MaxRunes: 1000}

	if err := v.Check("notes", strings.Repeat("a", 500)); err != nil {
		t.Errorf("Repetition check not disabled: %v", err)
	}
}

func TestTextValidator_CheckAll(t *testing.T) {
	err := ShortText.CheckAll("name", "Aspirin", "dosage", "1\x00")
	if err == nil || !strings.Contains(err.Error(), "dosage") {
		t.Errorf("Expected dosage failure, got: %v", err)
	}
	if err := ShortText.CheckAll("name", "Aspirin", "dosage", "100mg"); err != nil {
		t.Errorf("Valid pairs rejected: %v", err)
	}
}
