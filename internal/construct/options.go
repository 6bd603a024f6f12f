package construct

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// OptionConverter validates and normalizes a directive option value.
type OptionConverter func(value string) (string, error)

// Flag accepts an option without a value.
func Flag(value string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return "", fmt.Errorf("no argument is allowed; \"%s\" supplied", value)
	}
	return "", nil
}

// Unchanged returns the value as given, empty included.
func Unchanged(value string) (string, error) {
	return value, nil
}

// UnchangedRequired returns the value and rejects an empty one.
func UnchangedRequired(value string) (string, error) {
	if value == "" {
		return "", errors.New("argument required but none supplied")
	}
	return value, nil
}

// NonNegativeInt accepts integers >= 0.
func NonNegativeInt(value string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid literal for int(): %s", value)
	}
	if n < 0 {
		return "", errors.New("negative value; must be positive or zero")
	}
	return strconv.Itoa(n), nil
}

// PositiveInt accepts integers >= 1.
func PositiveInt(value string) (string, error) {
	v, err := NonNegativeInt(value)
	if err != nil {
		return "", err
	}
	if v == "0" {
		return "", errors.New("negative or zero value; must be positive")
	}
	return v, nil
}

// URI strips all whitespace from a URI.
func URI(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", errors.New("argument required but none supplied")
	}
	return strings.Join(strings.Fields(value), ""), nil
}

// ClassOption normalizes a space-separated class list.
func ClassOption(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", errors.New("argument required but none supplied")
	}
	classes := strings.Fields(strings.ToLower(value))
	return strings.Join(classes, " "), nil
}

// Choice accepts one of values, case-insensitively.
func Choice(values ...string) OptionConverter {
	return func(value string) (string, error) {
		v := strings.ToLower(strings.TrimSpace(value))
		for _, c := range values {
			if v == c {
				return v, nil
			}
		}
		return "", fmt.Errorf("\"%s\" unknown; choose from %s", value, formatValues(values))
	}
}

// formatValues renders `"a", "b", or "c"`.
func formatValues(values []string) string {
	quoted := make([]string, len(values))
	for i, c := range values {
		quoted[i] = "\"" + c + "\""
	}
	if len(quoted) < 2 {
		return strings.Join(quoted, "")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}

// Integer accepts any decimal integer.
func Integer(value string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid literal for int(): %s", value)
	}
	return strconv.Itoa(n), nil
}

var lengthUnits = []string{"em", "ex", "px", "in", "cm", "mm", "pt", "pc"}

var measureRe = regexp.MustCompile(`^([0-9.]+) *([a-z%]*)$`)

func measure(value string, units []string) (string, error) {
	m := measureRe.FindStringSubmatch(strings.TrimSpace(value))
	if m != nil && slices.Contains(units, m[2]) {
		if _, err := strconv.ParseFloat(m[1], 64); err == nil {
			return m[1] + m[2], nil
		}
	}
	return "", fmt.Errorf("not a positive measure of one of the following units:\n%s", strings.Join(quoteAll(units), " "))
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = "\"" + v + "\""
	}
	return out
}

// LengthOrUnitless accepts a length such as "2em" or a bare number.
func LengthOrUnitless(value string) (string, error) {
	return measure(value, append(slices.Clone(lengthUnits), ""))
}

// LengthOrPercentageOrUnitless also accepts "50%".
func LengthOrPercentageOrUnitless(value string) (string, error) {
	units := append(slices.Clone(lengthUnits), "%")
	if v, err := measure(value, units); err == nil {
		return v, nil
	}
	if v, err := measure(value, []string{""}); err == nil {
		return v, nil
	}
	return measure(value, units)
}

// Percentage accepts a non-negative integer with an optional "%".
func Percentage(value string) (string, error) {
	return NonNegativeInt(strings.TrimRight(value, " %"))
}

// SingleChar accepts one character or a character code such as "0x09".
func SingleChar(value string) (string, error) {
	c, err := CharacterCode(value)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(c) != 1 {
		return "", fmt.Errorf("'%s' invalid; must be a single character or a Unicode code", c)
	}
	return c, nil
}

var codeRe = regexp.MustCompile(`(?i)^(?:0x|x|\\x|U\+?|\\u)([0-9a-f]+)$|^&#x([0-9a-f]+);$`)

// CharacterCode converts a numeric character code ("65", "0x41", "U+0041",
// "&#x41;") to the character. Anything else is returned unchanged.
func CharacterCode(code string) (string, error) {
	var (
		n   int64
		err error
	)
	if m := codeRe.FindStringSubmatch(code); m != nil {
		hex := m[1]
		if hex == "" {
			hex = m[2]
		}
		n, err = strconv.ParseInt(hex, 16, 64)
	} else if code != "" && strings.Trim(code, "0123456789") == "" {
		n, err = strconv.ParseInt(code, 10, 64)
	} else {
		return code, nil
	}
	if err != nil || n > utf8.MaxRune {
		return "", errors.New("code too large")
	}
	return string(rune(n)), nil
}
