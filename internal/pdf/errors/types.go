package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// PDFError describes a failure inside the element pipeline together with the
// page and element kind it was confined to
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	cause       error
}

// ErrorType represents the categories of failures the pipeline distinguishes
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeParseFailure
	ErrorTypeExtractionKindFailure
	ErrorTypeRenderCancelled
	ErrorTypeRenderFailure
	ErrorTypeInvalidScale
	ErrorTypeInvalidDocument
	ErrorTypeSessionNotFound
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// Error implements the error interface
func (e *PDFError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type.String())
	if e.PageNumber > 0 {
		prefix += fmt.Sprintf(" page %d", e.PageNumber)
	}
	if e.Kind != "" {
		prefix += fmt.Sprintf(" (%s)", e.Kind)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s %s: %s", prefix, e.Message, e.Context)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap exposes the wrapped cause, if any
func (e *PDFError) Unwrap() error {
	return e.cause
}

// Is matches another PDFError of the same type, so callers can test against
// the sentinel values below with errors.Is
func (e *PDFError) Is(target error) bool {
	var t *PDFError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeParseFailure:
		return "PARSE_FAILURE"
	case ErrorTypeExtractionKindFailure:
		return "EXTRACTION_KIND_FAILURE"
	case ErrorTypeRenderCancelled:
		return "RENDER_CANCELLED"
	case ErrorTypeRenderFailure:
		return "RENDER_FAILURE"
	case ErrorTypeInvalidScale:
		return "INVALID_SCALE"
	case ErrorTypeInvalidDocument:
		return "INVALID_DOCUMENT"
	case ErrorTypeSessionNotFound:
		return "SESSION_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeRenderCancelled:
		return SeverityInfo
	case ErrorTypeExtractionKindFailure, ErrorTypeRenderFailure:
		return SeverityWarning
	case ErrorTypeParseFailure, ErrorTypeInvalidScale, ErrorTypeSessionNotFound:
		return SeverityError
	case ErrorTypeInvalidDocument:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the pipeline keeps going after this error.
// Page and kind failures degrade coverage, they never stop a document.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeParseFailure, ErrorTypeExtractionKindFailure:
		return true
	case ErrorTypeRenderCancelled, ErrorTypeRenderFailure:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is comparisons
var (
	ErrRenderCancelled = &PDFError{Type: ErrorTypeRenderCancelled}
	ErrInvalidScale    = &PDFError{Type: ErrorTypeInvalidScale}
	ErrSessionNotFound = &PDFError{Type: ErrorTypeSessionNotFound}
	ErrInvalidDocument = &PDFError{Type: ErrorTypeInvalidDocument}
)

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	e := NewPDFError(errorType, message)
	e.Context = context
	return e
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, err error) *PDFError {
	e := NewPDFError(errorType, err.Error())
	e.cause = err
	return e
}

// NewKindFailure records that one element kind failed on one page
func NewKindFailure(pageNumber int, kind string, err error) *PDFError {
	return WrapError(ErrorTypeExtractionKindFailure, err).WithPage(pageNumber).WithKind(kind)
}

// NewParseFailure records that a whole page could not be decoded
func NewParseFailure(pageNumber int, err error) *PDFError {
	return WrapError(ErrorTypeParseFailure, err).WithPage(pageNumber)
}

// NewRenderCancelled reports a render task abandoned by a scale change or teardown
func NewRenderCancelled(pageNumber int) *PDFError {
	return NewPDFError(ErrorTypeRenderCancelled, "render cancelled").WithPage(pageNumber)
}

// NewRenderFailure wraps a genuine render error
func NewRenderFailure(pageNumber int, err error) *PDFError {
	return WrapError(ErrorTypeRenderFailure, err).WithPage(pageNumber)
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// WithKind records the element kind the error was confined to
func (e *PDFError) WithKind(kind string) *PDFError {
	e.Kind = kind
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsCritical returns true if this error is critical
func (e *PDFError) IsCritical() bool {
	return e.GetSeverity() == SeverityCritical
}

// IsRenderCancelled reports whether err is (or wraps) a render cancellation
func IsRenderCancelled(err error) bool {
	return stderrors.Is(err, ErrRenderCancelled)
}

// ErrorCollection manages the errors raised while building one page or document
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Merge appends every entry of other
func (ec *ErrorCollection) Merge(other *ErrorCollection) {
	if other == nil {
		return
	}
	ec.Errors = append(ec.Errors, other.Errors...)
	ec.Warnings = append(ec.Warnings, other.Warnings...)
}

// HasCriticalErrors returns true if any critical errors exist
func (ec *ErrorCollection) HasCriticalErrors() bool {
	for _, err := range ec.Errors {
		if err.IsCritical() {
			return true
		}
	}
	return false
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Messages flattens errors and warnings into strings, errors first
func (ec *ErrorCollection) Messages() []string {
	out := make([]string, 0, len(ec.Errors)+len(ec.Warnings))
	for _, e := range ec.Errors {
		out = append(out, e.Error())
	}
	for _, w := range ec.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasCriticalErrors() {
		summary += " (including critical errors)"
	}

	return summary
}
