package analysis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Failure kinds. Only ErrValidation, ErrDataUnavailable, ErrSynthesisFailure and
// ErrPayloadInvalid ever reach the caller; the other two are logged and absorbed.
var (
	ErrValidation          = errors.New("validation error")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrAggregationDegraded = errors.New("aggregation degraded")
	ErrRetrievalEmpty      = errors.New("retrieval empty")
	ErrSynthesisFailure    = errors.New("synthesis failure")
	ErrPayloadInvalid      = errors.New("payload invalid")
)

// Error is a pipeline failure for one ticker
type Error struct {
	Kind   error
	Ticker string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Ticker == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Ticker)
	case e.Ticker == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Kind, e.Ticker, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, ticker string, err error) *Error {
	return &Error{Kind: kind, Ticker: ticker, Err: err}
}

var tickerPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,9}$`)

// NormalizeTicker validates raw and returns it uppercased
func NormalizeTicker(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if !tickerPattern.MatchString(t) {
		return "", newError(ErrValidation, "", fmt.Errorf("ticker %q must match %s", raw, tickerPattern))
	}
	return strings.ToUpper(t), nil
}
