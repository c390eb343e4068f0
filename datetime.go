package fudge

import (
	"fmt"
	"time"
)

// Accuracy is the granularity a DateTime value is known to (spec.md §6).
type Accuracy byte

const (
	AccuracyNanosecond  Accuracy = 0
	AccuracyMicrosecond Accuracy = 1
	AccuracyMillisecond Accuracy = 2
	AccuracySecond      Accuracy = 3
	AccuracyMinute      Accuracy = 4
	AccuracyHour        Accuracy = 5
	AccuracyDay         Accuracy = 6
	AccuracyMonth       Accuracy = 7
	AccuracyYear        Accuracy = 8
	AccuracyCentury     Accuracy = 9
)

const optionsOffsetPresent = 0x20

// DateTime is the in-memory form of the 14-byte dateTime wire payload.
//
// Per the open question recorded in spec.md §9 (and in SPEC_FULL.md
// DESIGN.md), offset=0 is distinguished by HasOffset: when HasOffset is
// true the value carries an explicit UTC ("+00:00") offset; when false it
// carries no offset information at all. The numeric value of Offset is
// never used to infer presence.
type DateTime struct {
	Accuracy  Accuracy
	HasOffset bool
	// Offset is in 15-minute units, range [-96, 96].
	Offset int8
	// Seconds since 1970-01-01T00:00:00 UTC.
	Seconds int64
	// Nanos is in [0, 1e9).
	Nanos uint32
}

// NewDateTime builds a DateTime from a time.Time, rejecting offsets that
// are not a multiple of 15 minutes (spec.md §8 Boundaries).
func NewDateTime(t time.Time, acc Accuracy, withOffset bool) (DateTime, error) {
	_, offsetSeconds := t.Zone()
	offsetMinutes := offsetSeconds / 60
	if offsetMinutes%15 != 0 {
		return DateTime{}, fmt.Errorf("fudge: datetime offset %d minutes is not a multiple of 15", offsetMinutes)
	}
	units := offsetMinutes / 15
	if units < -96 || units > 96 {
		return DateTime{}, fmt.Errorf("fudge: datetime offset %d is out of range [-96,96] 15-minute units", units)
	}
	u := t.UTC()
	return DateTime{
		Accuracy:  acc,
		HasOffset: withOffset,
		Offset:    int8(units),
		Seconds:   u.Unix(),
		Nanos:     uint32(u.Nanosecond()),
	}, nil
}

// Time reconstructs a time.Time, applying the stored offset if present.
func (d DateTime) Time() time.Time {
	t := time.Unix(d.Seconds, int64(d.Nanos)).UTC()
	if d.HasOffset && d.Offset != 0 {
		loc := time.FixedZone("", int(d.Offset)*15*60)
		t = t.In(loc)
	}
	return t
}

// RFC3339 renders the value per spec.md §6 ("Dates and times: RFC 3339").
func (d DateTime) RFC3339() string {
	return d.Time().Format(time.RFC3339Nano)
}

func encodeDateTime(buf []byte, v interface{}) ([]byte, error) {
	d, ok := v.(DateTime)
	if !ok {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("fudge: cannot write %T as dateTime", v)
		}
		var err error
		d, err = NewDateTime(t, AccuracyNanosecond, true)
		if err != nil {
			return nil, err
		}
	}
	options := byte(d.Accuracy) & 0x1F
	if d.HasOffset {
		options |= optionsOffsetPresent
	}
	return appendDateTimeBytes(buf, options, d.Offset, d.Seconds, d.Nanos), nil
}

func appendDateTimeBytes(buf []byte, options byte, offset int8, seconds int64, nanos uint32) []byte {
	buf = append(buf, options, byte(offset))
	s := uint64(seconds)
	buf = append(buf,
		byte(s>>56), byte(s>>48), byte(s>>40), byte(s>>32),
		byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
	buf = append(buf,
		byte(nanos>>24), byte(nanos>>16), byte(nanos>>8), byte(nanos))
	return buf
}

func decodeDateTime(p []byte) (DateTime, error) {
	if len(p) != 14 {
		return DateTime{}, MalformedError{Reason: "dateTime payload must be 14 bytes"}
	}
	options := p[0]
	offset := int8(p[1])
	seconds := int64(uint64(p[2])<<56 | uint64(p[3])<<48 | uint64(p[4])<<40 | uint64(p[5])<<32 |
		uint64(p[6])<<24 | uint64(p[7])<<16 | uint64(p[8])<<8 | uint64(p[9]))
	nanos := uint32(p[10])<<24 | uint32(p[11])<<16 | uint32(p[12])<<8 | uint32(p[13])
	return DateTime{
		Accuracy:  Accuracy(options & 0x1F),
		HasOffset: options&optionsOffsetPresent != 0,
		Offset:    offset,
		Seconds:   seconds,
		Nanos:     nanos,
	}, nil
}
