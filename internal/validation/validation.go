// Package validation normalizes and checks customer-supplied checkout input.
// Functions return the canonical form of the value or an *Error carrying a
// machine-readable reason; callers re-prompt without advancing the checkout.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Reason codes reported by the validators.
const (
	ReasonEmpty           = "empty"
	ReasonTooShort        = "too_short"
	ReasonTooLong         = "too_long"
	ReasonBadCharacters   = "bad_characters"
	ReasonBadLength       = "bad_length"
	ReasonBadOperatorCode = "bad_operator_code"
)

// Error describes a rejected input value.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

const (
	nameMinRunes    = 2
	nameMaxRunes    = 100
	addressMinRunes = 10
	addressMaxRunes = 500
	commentMaxRunes = 1000
	phoneDigits     = 11
)

// Name trims and validates a customer name: 2-100 runes of Latin or Cyrillic
// letters, spaces and hyphens. Input is NFC-normalized so decomposed accents
// count as single letters.
func Name(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" {
		return "", &Error{Field: "name", Reason: ReasonEmpty}
	}
	switch n := utf8.RuneCountInString(name); {
	case n < nameMinRunes:
		return "", &Error{Field: "name", Reason: ReasonTooShort}
	case n > nameMaxRunes:
		return "", &Error{Field: "name", Reason: ReasonTooLong}
	}
	for _, r := range name {
		if !isNameRune(r) {
			return "", &Error{Field: "name", Reason: ReasonBadCharacters}
		}
	}
	return name, nil
}

func isNameRune(r rune) bool {
	if r == ' ' || r == '-' {
		return true
	}
	return unicode.In(r, unicode.Latin, unicode.Cyrillic) && unicode.IsLetter(r)
}

// Phone normalizes a Russian phone number to the display form
// "+7 (XXX) XXX-XX-XX". Punctuation and spaces are stripped, a leading 8 is
// rewritten to 7, and any number still missing the country code gets a 7
// prepended before the length check. A plus anywhere but the front is
// rejected, as are numbers whose operator code starts with 0.
func Phone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &Error{Field: "phone", Reason: ReasonEmpty}
	}
	// Keep '+' while cleaning so a misplaced one is caught, not dropped.
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "+")
	if digits == "" || strings.ContainsRune(digits, '+') {
		return "", &Error{Field: "phone", Reason: ReasonBadCharacters}
	}
	if digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if digits[0] != '7' {
		digits = "7" + digits
	}
	if len(digits) != phoneDigits {
		return "", &Error{Field: "phone", Reason: ReasonBadLength}
	}
	if digits[1] == '0' || digits[2] == '0' {
		return "", &Error{Field: "phone", Reason: ReasonBadOperatorCode}
	}
	return fmt.Sprintf("+7 (%s) %s-%s-%s", digits[1:4], digits[4:7], digits[7:9], digits[9:11]), nil
}

// Address trims and validates a delivery address: 10-500 runes.
func Address(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", &Error{Field: "address", Reason: ReasonEmpty}
	}
	switch n := utf8.RuneCountInString(addr); {
	case n < addressMinRunes:
		return "", &Error{Field: "address", Reason: ReasonTooShort}
	case n > addressMaxRunes:
		return "", &Error{Field: "address", Reason: ReasonTooLong}
	}
	return addr, nil
}

// Comment trims an optional order comment. An empty result is valid and means
// the customer left no comment.
func Comment(raw string) (string, error) {
	comment := strings.TrimSpace(raw)
	if utf8.RuneCountInString(comment) > commentMaxRunes {
		return "", &Error{Field: "comment", Reason: ReasonTooLong}
	}
	return comment, nil
}
