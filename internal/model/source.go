package model

// Path represents a file system path.
type Path string

// FormID identifies a top-level source form. IDs are stable for a run and are
// the identity the trace oracle reports coverage against.
type FormID string

// TestID identifies a single runnable test.
type TestID string

// Form is a top-level source unit: the text of one form, the file it came
// from and the line its first byte starts on.
type Form struct {
	ID        FormID
	File      Path
	StartLine int
	Text      string
}

// FormLocation is the bridge entry reconciling the oracle's identifier space
// with statically scanned positions.
type FormLocation struct {
	ID        FormID
	File      Path
	StartLine int
}
