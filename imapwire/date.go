package imapwire

import (
	"fmt"
	"time"
)

// Date is a calendar date as used by SEARCH and APPEND, packed into
// a uint32 as year<<9 | month<<5 | day. The zero value is "no date".
//
// Bounds: 1 <= day <= 31, 1 <= month <= 12, 1900 <= year <= 2500.
// The year cap is not protocol-mandated; it keeps rendering total.
type Date uint32

const (
	minDateYear = 1900
	maxDateYear = 2500
)

// NewDate validates the components and packs them. ok is false when
// any component is out of bounds.
func NewDate(year, month, day int) (d Date, ok bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < minDateYear || year > maxDateYear {
		return 0, false
	}
	return Date(year<<9 | month<<5 | day), true
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) (Date, bool) {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Year() int  { return int(d >> 9) }
func (d Date) Month() int { return int(d>>5) & 0xf }
func (d Date) Day() int   { return int(d) & 0x1f }

// Time reports the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, time.UTC)
}

var monthNames = [13]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthFromName maps a three-letter month name, any case, to 1..12.
// It reports 0 for an unknown name.
func MonthFromName(name []byte) int {
	if len(name) != 3 {
		return 0
	}
	var buf [3]byte
	copy(buf[:], name)
	asciiUpper(buf[:])
	switch string(buf[:]) {
	case "JAN":
		return 1
	case "FEB":
		return 2
	case "MAR":
		return 3
	case "APR":
		return 4
	case "MAY":
		return 5
	case "JUN":
		return 6
	case "JUL":
		return 7
	case "AUG":
		return 8
	case "SEP":
		return 9
	case "OCT":
		return 10
	case "NOV":
		return 11
	case "DEC":
		return 12
	}
	return 0
}

// String renders the search-date form: D-Mon-YYYY with an unpadded
// day.
func (d Date) String() string {
	return fmt.Sprintf("%d-%s-%04d", d.Day(), monthNames[d.Month()], d.Year())
}

// InternalDate is a message INTERNALDATE: date, time of day, and
// zone offset packed into an int64. The zero value is "no date".
//
// Packing, low to high: zone offset in minutes biased by +1440
// (12 bits), second (6), minute (6), hour (5), day (5), month (4),
// year (12).
type InternalDate int64

const zoneBias = 24 * 60

// NewInternalDate validates every component and packs them. The zone
// is an offset from UTC in minutes, within ±24 hours.
func NewInternalDate(year, month, day, hour, min, sec, zoneOffsetMinutes int) (InternalDate, bool) {
	if _, ok := NewDate(year, month, day); !ok {
		return 0, false
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 60 {
		return 0, false
	}
	if zoneOffsetMinutes < -zoneBias || zoneOffsetMinutes > zoneBias {
		return 0, false
	}
	v := int64(year)
	v = v<<4 | int64(month)
	v = v<<5 | int64(day)
	v = v<<5 | int64(hour)
	v = v<<6 | int64(min)
	v = v<<6 | int64(sec)
	v = v<<12 | int64(zoneOffsetMinutes+zoneBias)
	return InternalDate(v), true
}

// InternalDateOf packs t, preserving its zone offset.
func InternalDateOf(t time.Time) (InternalDate, bool) {
	_, offset := t.Zone()
	y, m, d := t.Date()
	return NewInternalDate(y, int(m), d, t.Hour(), t.Minute(), t.Second(), offset/60)
}

func (d InternalDate) Year() int   { return int(d >> 38) }
func (d InternalDate) Month() int  { return int(d>>34) & 0xf }
func (d InternalDate) Day() int    { return int(d>>29) & 0x1f }
func (d InternalDate) Hour() int   { return int(d>>24) & 0x1f }
func (d InternalDate) Minute() int { return int(d>>18) & 0x3f }
func (d InternalDate) Second() int { return int(d>>12) & 0x3f }

// ZoneOffsetMinutes reports the zone offset from UTC in minutes.
func (d InternalDate) ZoneOffsetMinutes() int {
	return int(d&0xfff) - zoneBias
}

// Time reports the instant in a fixed zone at the packed offset.
func (d InternalDate) Time() time.Time {
	loc := time.FixedZone("", d.ZoneOffsetMinutes()*60)
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(),
		d.Hour(), d.Minute(), d.Second(), 0, loc)
}

// String renders the RFC 3501 date-time body (without quotes):
// a space-padded two-digit day, zero-padded time, ±HHMM zone.
func (d InternalDate) String() string {
	off := d.ZoneOffsetMinutes()
	sign := byte('+')
	if off < 0 {
		sign, off = '-', -off
	}
	return fmt.Sprintf("%2d-%s-%04d %02d:%02d:%02d %c%02d%02d",
		d.Day(), monthNames[d.Month()], d.Year(),
		d.Hour(), d.Minute(), d.Second(), sign, off/60, off%60)
}
