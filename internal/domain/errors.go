package domain

import (
	"errors"
	"fmt"
)

// ErrBadIntervalCount reports that the first full day of a count had a number
// of rows matching neither hourly (24 or 48) nor 15-minute (96 or 192) data,
// so the interval granularity cannot be determined.
var ErrBadIntervalCount = errors.New("cannot determine interval from number of rows on first full day")

// BadVehicleClassError reports a class code outside the accepted 0-15 range.
type BadVehicleClassError struct {
	Class int
}

func (e BadVehicleClassError) Error() string {
	return fmt.Sprintf("no such vehicle class %d", e.Class)
}

// InvalidMCDError reports an MCD code whose state prefix has no factor-column
// mapping (neither Pennsylvania's 42 nor New Jersey's 34).
type InvalidMCDError struct {
	MCD string
}

func (e InvalidMCDError) Error() string {
	return fmt.Sprintf("no factor columns for mcd %q", e.MCD)
}

// MissingFieldError reports a record or required field absent from the
// database.
type MissingFieldError struct {
	Recordnum int
	What      string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Recordnum, e.What)
}
