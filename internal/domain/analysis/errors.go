package analysis

import "fmt"

// FetchErrorKind classifies a page fetch failure.
type FetchErrorKind string

const (
	FetchNetwork    FetchErrorKind = "network"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchEmpty      FetchErrorKind = "empty"
)

// FetchError means the page could not be retrieved.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case FetchEmpty:
		return fmt.Sprintf("fetch %s: empty body", e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionErrorKind classifies why a page produced no usable text.
type ExtractionErrorKind string

const (
	ExtractionInsufficientContent ExtractionErrorKind = "insufficient_content"
	ExtractionUnreadable          ExtractionErrorKind = "unreadable"
)

// ExtractionError means the fetched page had too little readable text to analyze.
type ExtractionError struct {
	Kind  ExtractionErrorKind
	Chars int
	Min   int
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Kind == ExtractionInsufficientContent {
		return fmt.Sprintf("extract: insufficient content (%d chars, need %d)", e.Chars, e.Min)
	}
	return fmt.Sprintf("extract: %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Insufficient reports whether the error is the "try a different page" case.
func (e *ExtractionError) Insufficient() bool {
	return e.Kind == ExtractionInsufficientContent
}

// ParseErrorKind classifies a rejected model reply.
type ParseErrorKind string

const (
	ParseMalformedJSON   ParseErrorKind = "malformed_json"
	ParseSchemaViolation ParseErrorKind = "schema_violation"
)

// ParseError means the model reply did not match the AnalysisResult schema.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Kind == ParseSchemaViolation {
		return fmt.Sprintf("parse: schema violation on %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse: malformed json: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRequestError rejects a request before any pipeline work.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PipelineError records the last state reached before the pipeline failed.
type PipelineError struct {
	From Stage
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("analysis failed after %s: %v", e.From, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
