package xdpstats

import (
	"errors"
	"fmt"
)

// Sentinels wrapped by ShapeMismatchError so callers can tell an
// entry-count mismatch apart from a record-size mismatch with
// errors.Is.
var (
	ErrEntriesMismatch = errors.New("map entry count mismatch")
	ErrSizeMismatch    = errors.New("map key/value size mismatch")
)

// OptionError is returned for bad or missing command-line input. It is
// raised before any interaction with the kernel or the filesystem.
type OptionError struct {
	Option string
	Reason string
}

func (e *OptionError) Error() string {
	if e.Option == "" {
		return e.Reason
	}
	return fmt.Sprintf("option --%s: %s", e.Option, e.Reason)
}

// LoadError is returned when the object file cannot be parsed, the
// requested program is not present in it, or the kernel rejects the
// program.
type LoadError struct {
	ObjectPath  string
	ProgramName string
	Err         error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load program %q from %s: %v", e.ProgramName, e.ObjectPath, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AttachError is returned when the program cannot be attached to the
// device, for example because the device already carries an XDP
// program and force-replace was not requested.
type AttachError struct {
	Device string
	Mode   AttachMode
	Err    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach XDP program to %s (mode %s): %v", e.Device, e.Mode, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// ReuseError is returned when a pinned map was found and opened but
// the program does not declare a map with the expected name.
type ReuseError struct {
	MapName string
	Err     error
}

func (e *ReuseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reuse pinned map %q: %v", e.MapName, e.Err)
	}
	return fmt.Sprintf("reuse pinned map %q: map not declared by program", e.MapName)
}

func (e *ReuseError) Unwrap() error { return e.Err }

// PinIOError is returned when a filesystem operation on the pin
// location fails for a reason other than the path not existing.
type PinIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *PinIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PinIOError) Unwrap() error { return e.Err }

// ShapeMismatchError is returned when a pinned map's dimensions do not
// match the shape the reader was built for.
type ShapeMismatchError struct {
	Field string
	Want  uint32
	Got   uint32
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("pinned map not compatible: %s is %d, expected %d", e.Field, e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error {
	if e.Field == FieldMaxEntries {
		return ErrEntriesMismatch
	}
	return ErrSizeMismatch
}

// TransientOpenError reports that the pinned map could not be opened,
// most likely because another process is replacing it. The stats
// reporter retries these; one is returned only when a bounded retry
// policy runs out of attempts.
type TransientOpenError struct {
	Path    string
	Attempt int
	Err     error
}

func (e *TransientOpenError) Error() string {
	return fmt.Sprintf("open pinned map %s (attempt %d): %v", e.Path, e.Attempt, e.Err)
}

func (e *TransientOpenError) Unwrap() error { return e.Err }
