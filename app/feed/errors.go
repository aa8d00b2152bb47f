package feed

import "fmt"

// ParseError reports malformed or undecodable feed content. A parse failure
// is fatal to that fetch; the parser never returns a partial feed.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// FetchError reports a transport failure. Caught at the feed boundary and
// downgraded to an error status on the feed record.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// ExtractError reports that a downloaded article yielded no readable body.
// The item keeps its failed download status and is not retried.
type ExtractError struct {
	Cause error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract error: %v", e.Cause)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

// ReconcileError reports that a specific item failed to materialize during a
// reconciliation pass. The remaining batch for that feed is abandoned.
type ReconcileError struct {
	Feed  string
	Item  string
	Cause error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile feed %q item %q: %v", e.Feed, e.Item, e.Cause)
}

func (e *ReconcileError) Unwrap() error { return e.Cause }
