package ports

import (
	"gomdp/domain/experiment"
)

// ResultWriter records one run as a stream: the setup first, then one record
// per step outcome. Close finishes the stream; a stream without a clean
// close is detectably incomplete on read.
type ResultWriter interface {
	// WriteSetup writes the leading setup record. Must be called exactly
	// once, before any outcome.
	WriteSetup(setup *experiment.Setup) error

	// WriteOutcome appends one step outcome.
	WriteOutcome(outcome experiment.Outcome) error

	// Close terminates the stream and releases the underlying sink.
	Close() error
}

// ResultSource iterates a recorded result stream.
type ResultSource interface {
	// Setup returns the stream's leading setup record.
	Setup() *experiment.Setup

	// Next returns the next outcome, or io.EOF once the stream ends.
	Next() (*experiment.Outcome, error)

	// Complete reports whether the stream carried its end marker. Only
	// meaningful after Next has returned io.EOF.
	Complete() bool

	// Close releases the underlying source.
	Close() error
}
