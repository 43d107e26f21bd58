// Package dmerr defines the failure conditions shared by the environment,
// map and icon loaders. Callers match them with errors.Is / errors.As.
package dmerr

import (
	"errors"
	"fmt"

	"avulto/internal/source"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrIO         = errors.New("io error")
	ErrOutOfRange = errors.New("out of range")
)

// NotFoundError names something that could not be resolved.
type NotFoundError struct {
	Kind string // "path", "var", "proc", "state", ...
	Name string
}

// NotFound builds a NotFoundError.
func NotFound(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find %s %s", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError reports malformed input, with a location when one is known.
type ParseError struct {
	Loc source.Location
	Msg string
}

// Parse builds a ParseError with a formatted message.
func Parse(loc source.Location, format string, args ...any) *ParseError {
	return &ParseError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	if e.Loc.IsZero() {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("%s: parse error: %s", e.Loc, e.Msg)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IOError wraps a failed read or write of Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// IO wraps err as an IOError. A nil err yields nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// OutOfRangeError reports a coordinate or index outside its container.
type OutOfRangeError struct {
	What  string
	Value string
}

// OutOfRange builds an OutOfRangeError.
func OutOfRange(what, format string, args ...any) *OutOfRangeError {
	return &OutOfRangeError{What: what, Value: fmt.Sprintf(format, args...)}
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %s out of range", e.What, e.Value)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }
