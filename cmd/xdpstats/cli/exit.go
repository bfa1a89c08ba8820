package cli

import (
	"errors"

	"github.com/frobware/go-xdpstats"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitOption  = 2
	// ExitFailXDP reports a failure to attach to the device.
	ExitFailXDP = 30
	// ExitFailBPF reports a failure to load the program or to use
	// the stats map.
	ExitFailBPF = 40
)

// ExitCode maps an error returned by a command to an exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		optErr    *xdpstats.OptionError
		attachErr *xdpstats.AttachError
		loadErr   *xdpstats.LoadError
		reuseErr  *xdpstats.ReuseError
		shapeErr  *xdpstats.ShapeMismatchError
		openErr   *xdpstats.TransientOpenError
	)
	switch {
	case errors.As(err, &optErr):
		return ExitOption
	case errors.As(err, &attachErr):
		return ExitFailXDP
	case errors.As(err, &loadErr), errors.As(err, &reuseErr),
		errors.As(err, &shapeErr), errors.As(err, &openErr):
		return ExitFailBPF
	default:
		return ExitFailure
	}
}
