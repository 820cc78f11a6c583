// Package fxerr defines the error taxonomy shared by every component.
//
// An *Error carries the operation that failed (its source location), the
// kind of failure and the underlying cause. Only the control loop and the
// CLI interpret kinds; everything else just wraps and returns.
package fxerr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Other Kind = iota
	Config
	Credential
	Scheduling
	DataAcquisition
	Execution
	Persistence
	Broker
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config error"
	case Credential:
		return "credential error"
	case Scheduling:
		return "scheduling error"
	case DataAcquisition:
		return "data acquisition error"
	case Execution:
		return "execution error"
	case Persistence:
		return "persistence error"
	case Broker:
		return "broker error"
	default:
		return "error"
	}
}

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error must stop the program at startup.
func (e *Error) Fatal() bool {
	return e.Kind == Config || e.Kind == Credential
}

// E wraps err with an operation and kind. A nil err yields nil.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func Errorf(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain that has
// one set, or Other.
func KindOf(err error) Kind {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return Other
		}
		if e.Kind != Other {
			return e.Kind
		}
		err = e.Err
	}
	return Other
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsFatal reports whether err carries a fatal kind anywhere in its chain.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == Config || k == Credential
}
