// Package discovery finds candidate announcement links on source listing pages.
package discovery

import "fmt"

// Error represents a failure to crawl a source listing page.
type Error struct {
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("discovery error for %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("discovery error for %s: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
