package tmdef

import (
	"errors"
	"strconv"
)

// Status is a driver status code sharing the bf_status_t numeric space.
// Non-zero values implement error.
type Status int

// Status values.
const (
	Success        Status = 0
	NotReady       Status = 1
	NoSysResources Status = 2
	AlreadyExists  Status = 3
	InvalidArg     Status = 4
	InUse          Status = 5
	HwCommFail     Status = 6
	ObjectNotFound Status = 7
	Again          Status = 11
	InitError      Status = 12
	Unexpected     Status = 16
	NotSupported   Status = 18
)

var statusNames = map[Status]string{
	Success:        "success",
	NotReady:       "not ready",
	NoSysResources: "no system resources",
	AlreadyExists:  "already exists",
	InvalidArg:     "invalid argument",
	InUse:          "in use",
	HwCommFail:     "hardware communication failure",
	ObjectNotFound: "object not found",
	Again:          "resource temporarily unavailable",
	InitError:      "initialization error",
	Unexpected:     "unexpected error",
	NotSupported:   "not supported",
}

func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status " + strconv.Itoa(int(s))
}

// Status errors.
var (
	ErrNoSysResources error = NoSysResources
	ErrAlreadyExists  error = AlreadyExists
	ErrInvalidArg     error = InvalidArg
	ErrObjectNotFound error = ObjectNotFound
	ErrAgain          error = Again
	ErrUnexpected     error = Unexpected
	ErrNotSupported   error = NotSupported
	ErrHwCommFail     error = HwCommFail
)

// StatusOf extracts Status from an error.
// nil is Success; an error without Status is Unexpected.
func StatusOf(e error) Status {
	if e == nil {
		return Success
	}
	var s Status
	if errors.As(e, &s) {
		return s
	}
	return Unexpected
}
