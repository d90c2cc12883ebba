// Package literal converts between the textual primitive literal forms used by CSDL
// documents (XML attribute values and JSON string members) and Go values.
//
// Every parser returns an error wrapping ErrInvalidLiteral when the input is not a valid
// literal of the requested kind. Every formatter produces the canonical form that the
// matching parser accepts, so Format(Parse(s)) is stable.
package literal

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidLiteral is wrapped by every parse failure in this package.
var ErrInvalidLiteral = errors.New("invalid literal")

func invalid(kind, text string) error {
	return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidLiteral, text, kind)
}

// ParseBool parses the CSDL boolean literals "true" and "false".
func ParseBool(text string) (bool, error) {
	switch strings.TrimSpace(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, invalid("Edm.Boolean", text)
}

// FormatBool formats a boolean literal.
func FormatBool(v bool) string {
	return strconv.FormatBool(v)
}

// ParseInt parses a signed integer literal that fits into 64 bits.
func ParseInt(text string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, invalid("Edm.Int64", text)
	}
	return v, nil
}

// FormatInt formats an integer literal.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ParseFloat parses an Edm.Double literal, including the special values INF, -INF and NaN.
func ParseFloat(text string) (float64, error) {
	switch strings.TrimSpace(text) {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, invalid("Edm.Double", text)
	}
	return v, nil
}

// FormatFloat formats an Edm.Double literal. Integral values keep a trailing ".0" so the
// literal is not read back as an integer.
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "INF"
	case math.IsInf(v, -1):
		return "-INF"
	case math.IsNaN(v):
		return "NaN"
	}
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".EN") {
		s += ".0"
	}
	return s
}

// ParseDecimal parses an Edm.Decimal literal.
func ParseDecimal(text string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, invalid("Edm.Decimal", text)
	}
	v, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, invalid("Edm.Decimal", text)
	}
	return v, nil
}

// FormatDecimal formats an Edm.Decimal literal without exponent notation.
func FormatDecimal(v decimal.Decimal) string {
	return v.String()
}

// ParseGuid parses an Edm.Guid literal in the 8-4-4-4-12 form.
func ParseGuid(text string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) != 36 {
		return uuid.Nil, invalid("Edm.Guid", text)
	}
	v, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, invalid("Edm.Guid", text)
	}
	return v, nil
}

// FormatGuid formats an Edm.Guid literal in lower case.
func FormatGuid(v uuid.UUID) string {
	return v.String()
}

// ParseBinary parses an Edm.Binary literal. The base64url form is canonical; padded
// base64url is accepted, and text that is not base64url falls back to hexadecimal.
func ParseBinary(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if v, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(trimmed, "=")); err == nil {
		return v, nil
	}
	if v, err := hex.DecodeString(trimmed); err == nil {
		return v, nil
	}
	return nil, invalid("Edm.Binary", text)
}

// FormatBinary formats an Edm.Binary literal as unpadded base64url.
func FormatBinary(v []byte) string {
	return base64.RawURLEncoding.EncodeToString(v)
}

// ParseDateTimeOffset parses an Edm.DateTimeOffset literal. A missing seconds component
// is tolerated, as allowed by the CSDL grammar.
func ParseDateTimeOffset(text string) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	if v, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return v, nil
	}
	for _, layout := range []string{"2006-01-02T15:04Z07:00", "2006-01-02T15:04:05.999999999Z07:00"} {
		if v, err := time.Parse(layout, trimmed); err == nil {
			return v, nil
		}
	}
	return time.Time{}, invalid("Edm.DateTimeOffset", text)
}

// FormatDateTimeOffset formats an Edm.DateTimeOffset literal. UTC values use the "Z" suffix.
func FormatDateTimeOffset(v time.Time) string {
	return v.Format(time.RFC3339Nano)
}
