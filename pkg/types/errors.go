package types

import "fmt"

// MissingArtifactError reports a model or schema artifact absent at load
// time. The scoring engine treats this as permanent fallback mode until
// restart.
type MissingArtifactError struct {
	Path string
	Err  error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("model artifact missing: %s: %v", e.Path, e.Err)
}

func (e *MissingArtifactError) Unwrap() error { return e.Err }

// InsufficientDataError reports a training run refused because the sample
// count is below the configured minimum. No artifact is written.
type InsufficientDataError struct {
	Samples int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d samples, minimum %d", e.Samples, e.Minimum)
}

// FeatureAlignmentError reports a feature vector whose length disagrees with
// the loaded schema. It is treated as an inference failure for the single
// request, never as a fatal condition.
type FeatureAlignmentError struct {
	Got  int
	Want int
}

func (e *FeatureAlignmentError) Error() string {
	return fmt.Sprintf("feature vector has %d values, schema expects %d", e.Got, e.Want)
}

// UnsupportedChainError reports a chain outside the configured set. It is a
// typed result checked by callers, not exception-driven control flow.
type UnsupportedChainError struct {
	Chain string
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("chain %q is not supported", e.Chain)
}
