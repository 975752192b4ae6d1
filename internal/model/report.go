package model

// Verdict is the terminal outcome of testing one mutation site. A site moves
// from pending to exactly one terminal state and is never revisited.
type Verdict int

const (
	// Pending indicates the site has not been executed yet.
	Pending Verdict = iota
	// Killed indicates at least one targeted test failed under the mutation.
	Killed
	// Survived indicates every targeted test passed under the mutation.
	Survived
	// NoCoverage indicates no targeted tests exist; nothing was executed.
	NoCoverage
	// Timeout indicates a targeted test exceeded its bound; remaining tests
	// for the site were cancelled.
	Timeout
	// Errored indicates execution itself failed, unrelated to assertions.
	Errored
)

// String returns the verdict name used in reports.
func (v Verdict) String() string {
	switch v {
	case Pending:
		return "pending"
	case Killed:
		return "killed"
	case Survived:
		return "survived"
	case NoCoverage:
		return "no-coverage"
	case Timeout:
		return "timeout"
	case Errored:
		return "error"
	}

	return "unknown"
}

// Terminal reports whether the verdict is final.
func (v Verdict) Terminal() bool {
	return v != Pending
}

// ParseVerdict maps a report verdict name back to its Verdict. The second
// return is false for names no verdict renders to.
func ParseVerdict(name string) (Verdict, bool) {
	for _, v := range []Verdict{Pending, Killed, Survived, NoCoverage, Timeout, Errored} {
		if v.String() == name {
			return v, true
		}
	}

	return Pending, false
}

// Report records the outcome of one mutation site.
type Report struct {
	Site    MutationSite `yaml:"site"`
	Verdict string       `yaml:"verdict"`
	// Output holds the combined output of the targeted tests, if any ran.
	Output string `yaml:"output,omitempty"`
	// Diff is a unified diff of the original versus mutated expression.
	Diff string `yaml:"diff,omitempty"`
	// Propagated is true when the verdict was copied from a cluster
	// representative rather than observed directly.
	Propagated bool `yaml:"propagated,omitempty"`
	// KilledBy names the test that killed the mutant, when applicable.
	KilledBy TestID `yaml:"killed_by,omitempty"`
}

// RunSummary is the persisted outcome of a whole run.
type RunSummary struct {
	RunID      string         `yaml:"run_id"`
	Score      float64        `yaml:"score"`
	Killed     int            `yaml:"killed"`
	Survived   int            `yaml:"survived"`
	NoCoverage int            `yaml:"no_coverage"`
	Timeouts   int            `yaml:"timeouts"`
	Errors     int            `yaml:"errors"`
	Equivalent []ExcludedSite `yaml:"equivalent,omitempty"`
	Reports    []Report       `yaml:"reports"`
}
