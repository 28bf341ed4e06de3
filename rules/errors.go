package rules

import (
	"errors"
	"fmt"
)

// Error kinds. Per-document kinds are recoverable and collected into the run
// report; registry kinds are always fatal.
var (
	ErrParse          = errors.New("parse error")
	ErrMissingTitle   = errors.New("missing title")
	ErrUnknownSection = errors.New("unknown section")
	ErrInvalidImpact  = errors.New("invalid impact")
	ErrRead           = errors.New("read error")
	ErrTimeout        = errors.New("document timeout")

	ErrDuplicatePrefix = errors.New("duplicate prefix")
	ErrEmptyRegistry   = errors.New("empty registry")
	ErrInvalidSection  = errors.New("invalid section")
)

// ErrorKind is the short, stable name used in reports and metric labels.
type ErrorKind string

// Report names for each error kind.
const (
	KindParse           ErrorKind = "ParseError"
	KindMissingTitle    ErrorKind = "MissingTitleError"
	KindUnknownSection  ErrorKind = "UnknownSectionError"
	KindInvalidImpact   ErrorKind = "InvalidImpactError"
	KindRead            ErrorKind = "ReadError"
	KindTimeout         ErrorKind = "TimeoutError"
	KindDuplicatePrefix ErrorKind = "DuplicatePrefixError"
	KindEmptyRegistry   ErrorKind = "EmptyRegistryError"
	KindInvalidSection  ErrorKind = "InvalidSectionError"
)

var kindSentinels = map[ErrorKind]error{
	KindParse:           ErrParse,
	KindMissingTitle:    ErrMissingTitle,
	KindUnknownSection:  ErrUnknownSection,
	KindInvalidImpact:   ErrInvalidImpact,
	KindRead:            ErrRead,
	KindTimeout:         ErrTimeout,
	KindDuplicatePrefix: ErrDuplicatePrefix,
	KindEmptyRegistry:   ErrEmptyRegistry,
	KindInvalidSection:  ErrInvalidSection,
}

// Sentinel returns the sentinel error for the kind.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// DocumentError is a recoverable failure isolated to one document.
type DocumentError struct {
	Kind     ErrorKind
	Source   string
	Fragment string // offending input: prefix, impact string, or metadata line
	Line     int    // 1-based line within the document, 0 when unknown
	Err      error
}

// NewDocumentError builds a DocumentError. msg may be empty.
func NewDocumentError(kind ErrorKind, source, fragment, msg string) *DocumentError {
	var err error
	if msg != "" {
		err = errors.New(msg)
	}
	return &DocumentError{Kind: kind, Source: source, Fragment: fragment, Err: err}
}

func (e *DocumentError) Error() string {
	msg := string(e.Kind)
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Fragment != "" {
		msg += fmt.Sprintf(" (fragment %q)", e.Fragment)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *DocumentError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithSource returns a copy of e carrying the given source identifier.
func (e *DocumentError) WithSource(source string) *DocumentError {
	clone := *e
	clone.Source = source
	return &clone
}

// RegistryError is a fatal failure building the section registry.
type RegistryError struct {
	Kind     ErrorKind
	Fragment string
	Err      error
}

func (e *RegistryError) Error() string {
	msg := "section registry: " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Fragment != "" {
		msg += fmt.Sprintf(" (fragment %q)", e.Fragment)
	}
	return msg
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *RegistryError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the ErrorKind carried by err, or "" when err is not from this package.
func KindOf(err error) ErrorKind {
	var de *DocumentError
	if errors.As(err, &de) {
		return de.Kind
	}
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
