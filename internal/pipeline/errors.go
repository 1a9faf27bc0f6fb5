package pipeline

import "fmt"

// RequestError rejects a request before any data is fetched.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Reason
}

// ProviderError reports a failed or empty bar fetch, or bars that cannot be decoded.
type ProviderError struct {
	MarketID string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("failed to get bars for %s: %v", e.MarketID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient bars: %d required, %d available", e.Required, e.Available)
}

// IndicatorError is raised in strict mode when an indicator has no value.
type IndicatorError struct {
	ID     string
	Reason string
}

func (e *IndicatorError) Error() string {
	return fmt.Sprintf("indicator %s has no value: %s", e.ID, e.Reason)
}
