package exitcode

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	Success = 0

	// Anything went wrong that doesn't have a more specific code
	Failure = 1

	// The command line couldn't be parsed, or help was requested
	Usage = 2

	// The input map couldn't be read or parsed
	InvalidMap = 3

	// A lookup ran to completion but at least one position had no mapping
	// and "--strict" was passed
	Unmapped = 4
)

// Coder is an interface to control what value Get returns.
type Coder interface {
	error
	ExitCode() int
}

// Get gets the exit code associated with an error. Cases:
//
//	nil => 0
//	errors implementing Coder => value returned by ExitCode
//	pflag.ErrHelp => 2
//	all other errors => 1
func Get(err error) int {
	if err == nil {
		return Success
	}

	if coder := Coder(nil); errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if errors.Is(err, pflag.ErrHelp) {
		return Usage
	}

	return Failure
}

// Set wraps an error in a Coder, setting its error code.
func Set(err error, code int) error {
	if err == nil {
		return nil
	}
	return coder{err, code}
}

var _ Coder = coder{}

type coder struct {
	error
	int
}

func (co coder) ExitCode() int {
	return co.int
}

func (co coder) Unwrap() error {
	return co.error
}

// Cause lets "errors.Cause" see through the exit code
func (co coder) Cause() error {
	return co.error
}

// Exit is a convenience function that calls os.Exit
// with the exit code associated with err.
func Exit(err error) {
	os.Exit(Get(err))
}
