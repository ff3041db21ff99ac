// Package dberr defines the error taxonomy shared by the registry, the
// backend drivers and the connection manager. Context carried on an
// error is limited to names (connection name, field names), never
// passwords or raw field values.
package dberr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindConfig     Kind = "config"
	KindCrypto     Kind = "crypto"
	KindValidation Kind = "validation"
	KindDriver     Kind = "driver"
	KindConnection Kind = "connection"
	KindQuery      Kind = "query"
	KindDatabase   Kind = "database"
)

// Error is the single error type crossing package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Conn    string   // connection name, when known
	Fields  []string // offending field names, when known
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Conn != "" {
		fmt.Fprintf(&b, " (connection %q)", e.Conn)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (fields: %s)", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) WithConn(name string) *Error {
	e.Conn = name
	return e
}

func (e *Error) WithFields(names ...string) *Error {
	e.Fields = append(e.Fields, names...)
	return e
}

// KindOf reports the taxonomy kind of err, or "" when err does not wrap
// a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
