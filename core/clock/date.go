package clock

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Date is a civil date in the school's calendar.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the WIB civil date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.In(WIB).Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), WIB)
	if err != nil {
		return Date{}, errors.Wrapf(err, "clock.ParseDate(%q)", s)
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Time returns midnight of d in WIB.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, WIB)
}

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }
func (d Date) Equal(o Date) bool  { return d == o }

// At combines d with a time of day into a WIB instant.
func (d Date) At(tod TimeOfDay) time.Time {
	return d.Time().Add(time.Duration(tod))
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil { // null leaves s empty
		return errors.Wrap(err, "clock.Date.UnmarshalJSON")
	}
	return d.UnmarshalText([]byte(s))
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalParam binds query/path params in echo.
func (d *Date) UnmarshalParam(param string) error {
	return d.UnmarshalText([]byte(param))
}

// Scan reads a DATE column. Drivers hand DATE back as midnight UTC, so the
// calendar fields are taken as-is, without zone conversion.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		y, m, day := v.Date()
		*d = Date{Year: y, Month: m, Day: day}
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return errors.Errorf("clock.Date.Scan: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return d.UnmarshalText([]byte(s))
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// TimeOfDay is a wall-clock time within a day, as the duration since midnight.
type TimeOfDay time.Duration

// ClockTime builds a TimeOfDay from hour, minute and second.
func ClockTime(hour, min, sec int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
}

// TimeOf returns the WIB wall-clock time of t, nanoseconds included.
func TimeOf(t time.Time) TimeOfDay {
	t = t.In(WIB)
	return ClockTime(t.Hour(), t.Minute(), t.Second()) + TimeOfDay(t.Nanosecond())
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := TimeLayout
	if len(s) > len(TimeLayout) {
		layout = TimeLayout + ".999999999"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, errors.Wrapf(err, "clock.ParseTimeOfDay(%q)", s)
	}
	return ClockTime(t.Hour(), t.Minute(), t.Second()) + TimeOfDay(t.Nanosecond()), nil
}

func (t TimeOfDay) Hour() int   { return int(time.Duration(t) / time.Hour) }
func (t TimeOfDay) Minute() int { return int(time.Duration(t)%time.Hour) / int(time.Minute) }
func (t TimeOfDay) Second() int { return int(time.Duration(t)%time.Minute) / int(time.Second) }

func (t TimeOfDay) Before(o TimeOfDay) bool { return t < o }

// Compare returns -1, 0 or +1.
func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "clock.TimeOfDay.UnmarshalJSON")
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan reads a TIME column.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = ClockTime(v.Hour(), v.Minute(), v.Second()) + TimeOfDay(v.Nanosecond())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return errors.Errorf("clock.TimeOfDay.Scan: unsupported type %T", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	ns := time.Duration(t) % time.Second
	if ns == 0 {
		return t.String(), nil
	}
	return fmt.Sprintf("%s.%09d", t.String(), ns), nil
}
