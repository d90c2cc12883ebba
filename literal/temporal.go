package literal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is an Edm.Date value: a calendar date without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String returns the canonical literal form.
func (d Date) String() string {
	return FormatDate(d)
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an Edm.Date literal (YYYY-MM-DD, with optional leading minus sign and
// more than four year digits).
func ParseDate(text string) (Date, error) {
	trimmed := strings.TrimSpace(text)
	negative := strings.HasPrefix(trimmed, "-")
	body := strings.TrimPrefix(trimmed, "-")
	parts := strings.Split(body, "-")
	if len(parts) != 3 || len(parts[0]) < 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, invalid("Edm.Date", text)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, invalid("Edm.Date", text)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Date{}, invalid("Edm.Date", text)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > daysIn(time.Month(month), year) {
		return Date{}, invalid("Edm.Date", text)
	}
	if negative {
		year = -year
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// FormatDate formats an Edm.Date literal.
func FormatDate(d Date) string {
	year := d.Year
	sign := ""
	if year < 0 {
		sign = "-"
		year = -year
	}
	return fmt.Sprintf("%s%04d-%02d-%02d", sign, year, int(d.Month), d.Day)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TimeOfDay is an Edm.TimeOfDay value.
type TimeOfDay struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// String returns the canonical literal form.
func (t TimeOfDay) String() string {
	return FormatTimeOfDay(t)
}

// ParseTimeOfDay parses an Edm.TimeOfDay literal (hh:mm[:ss[.fffffffff]]).
func ParseTimeOfDay(text string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(text)
	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, invalid("Edm.TimeOfDay", text)
	}
	var t TimeOfDay
	var err error
	if t.Hour, err = twoDigits(parts[0], 23); err != nil {
		return TimeOfDay{}, invalid("Edm.TimeOfDay", text)
	}
	if t.Minute, err = twoDigits(parts[1], 59); err != nil {
		return TimeOfDay{}, invalid("Edm.TimeOfDay", text)
	}
	if len(parts) == 3 {
		seconds, fraction, _ := strings.Cut(parts[2], ".")
		if t.Second, err = twoDigits(seconds, 59); err != nil {
			return TimeOfDay{}, invalid("Edm.TimeOfDay", text)
		}
		if strings.Contains(parts[2], ".") {
			if t.Nanosecond, err = nanos(fraction); err != nil {
				return TimeOfDay{}, invalid("Edm.TimeOfDay", text)
			}
		}
	}
	return t, nil
}

// FormatTimeOfDay formats an Edm.TimeOfDay literal. Seconds are always written; the
// fractional part only when non-zero.
func FormatTimeOfDay(t TimeOfDay) string {
	s := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Nanosecond > 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%09d", t.Nanosecond), "0")
	}
	return s
}

func twoDigits(s string, upper int) (int, error) {
	if len(s) != 2 {
		return 0, ErrInvalidLiteral
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > upper {
		return 0, ErrInvalidLiteral
	}
	return v, nil
}

func nanos(fraction string) (int, error) {
	if fraction == "" || len(fraction) > 12 {
		return 0, ErrInvalidLiteral
	}
	for _, r := range fraction {
		if r < '0' || r > '9' {
			return 0, ErrInvalidLiteral
		}
	}
	if len(fraction) > 9 {
		fraction = fraction[:9]
	}
	v, err := strconv.Atoi(fraction + strings.Repeat("0", 9-len(fraction)))
	if err != nil {
		return 0, ErrInvalidLiteral
	}
	return v, nil
}

// ParseDuration parses an Edm.Duration literal: an ISO 8601 day-time duration such as
// "P1DT2H3M4.5S" or "-PT30M".
func ParseDuration(text string) (time.Duration, error) {
	trimmed := strings.TrimSpace(text)
	negative := strings.HasPrefix(trimmed, "-")
	body := strings.TrimPrefix(trimmed, "-")
	if !strings.HasPrefix(body, "P") || len(body) < 2 {
		return 0, invalid("Edm.Duration", text)
	}
	body = body[1:]
	datePart, timePart, hasTime := strings.Cut(body, "T")
	if hasTime && timePart == "" {
		return 0, invalid("Edm.Duration", text)
	}

	var total time.Duration
	if datePart != "" {
		days, ok := strings.CutSuffix(datePart, "D")
		if !ok {
			return 0, invalid("Edm.Duration", text)
		}
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n < 0 {
			return 0, invalid("Edm.Duration", text)
		}
		total += time.Duration(n) * 24 * time.Hour
	}

	rest := timePart
	for _, unit := range []struct {
		designator string
		scale      time.Duration
	}{{"H", time.Hour}, {"M", time.Minute}} {
		if idx := strings.Index(rest, unit.designator); idx >= 0 {
			n, err := strconv.ParseInt(rest[:idx], 10, 64)
			if err != nil || n < 0 {
				return 0, invalid("Edm.Duration", text)
			}
			total += time.Duration(n) * unit.scale
			rest = rest[idx+1:]
		}
	}
	if rest != "" {
		seconds, ok := strings.CutSuffix(rest, "S")
		if !ok {
			return 0, invalid("Edm.Duration", text)
		}
		whole, fraction, hasFraction := strings.Cut(seconds, ".")
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n < 0 {
			return 0, invalid("Edm.Duration", text)
		}
		total += time.Duration(n) * time.Second
		if hasFraction {
			ns, err := nanos(fraction)
			if err != nil {
				return 0, invalid("Edm.Duration", text)
			}
			total += time.Duration(ns)
		}
	}
	if negative {
		total = -total
	}
	return total, nil
}

// FormatDuration formats an Edm.Duration literal in the canonical day-time form.
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
	}
	if d == 0 {
		if days == 0 {
			b.WriteString("T0S")
		}
		return b.String()
	}
	b.WriteByte('T')
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	if hours > 0 {
		b.WriteString(strconv.FormatInt(int64(hours), 10))
		b.WriteByte('H')
	}
	if minutes > 0 {
		b.WriteString(strconv.FormatInt(int64(minutes), 10))
		b.WriteByte('M')
	}
	if d > 0 {
		seconds := d / time.Second
		fraction := d - seconds*time.Second
		b.WriteString(strconv.FormatInt(int64(seconds), 10))
		if fraction > 0 {
			b.WriteByte('.')
			b.WriteString(strings.TrimRight(fmt.Sprintf("%09d", int64(fraction)), "0"))
		}
		b.WriteByte('S')
	}
	return b.String()
}
