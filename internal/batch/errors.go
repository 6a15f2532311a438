package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResult is returned when a result row does not have the expected shape.
	ErrMalformedResult = errors.New("malformed batch result")
	// ErrJobNotCompleted is returned when a job ends in a terminal status other than completed.
	ErrJobNotCompleted = errors.New("batch job did not complete")
)

// MalformedResultError reports the result line that broke the expected row shape.
type MalformedResultError struct {
	Line    int    // Line is the 1-based line number in the result file, header included.
	Content string // Content is the offending line.
	Fields  int    // Fields is the number of fields the line split into.
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("line %d has %d fields, want %d: %q", e.Line, e.Fields, resultFieldCount, e.Content)
}

// Is makes every MalformedResultError match ErrMalformedResult.
func (e *MalformedResultError) Is(target error) bool { return target == ErrMalformedResult }
