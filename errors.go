package agent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies run and dispatch failures.
type ErrorKind string

const (
	// KindInvalidArguments: proposed arguments violate the tool's schema.
	KindInvalidArguments ErrorKind = "invalid_arguments"
	// KindUnknownTool: the proposal names a tool that is not registered.
	KindUnknownTool ErrorKind = "unknown_tool"
	// KindToolExecutionFailed wraps a tool's own failure after one retry.
	KindToolExecutionFailed ErrorKind = "tool_execution_failed"
	// KindUpstreamUnavailable: the text-generation service errored; fatal.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindStepBudgetExceeded: no final answer within the configured steps.
	KindStepBudgetExceeded ErrorKind = "step_budget_exceeded"
	// KindOutputFormatError: the final answer could not be rendered as requested.
	KindOutputFormatError ErrorKind = "output_format_error"
	// KindMissingCredential: required configuration absent before any run began.
	KindMissingCredential ErrorKind = "missing_credential"
	// KindCancelled: the run was cancelled at a step checkpoint or mid-stream.
	KindCancelled ErrorKind = "cancelled"
)

// Failure is the structured error a run surfaces to its caller. It carries
// the transcript accumulated so far for diagnosis; a failed run never
// returns a partial answer presented as success.
type Failure struct {
	Kind       ErrorKind
	Err        error
	Transcript []Turn
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is allows errors.Is comparisons against a bare kind failure.
func (f *Failure) Is(target error) bool {
	other, ok := target.(*Failure)
	return ok && other.Kind == f.Kind
}

func newFailure(kind ErrorKind, err error, transcript *Transcript) *Failure {
	f := &Failure{Kind: kind, Err: err}
	if transcript != nil {
		f.Transcript = transcript.Turns()
	}
	return f
}

// MissingCredentialError reports absent configuration before any run begins.
func MissingCredentialError(name string) *Failure {
	return &Failure{Kind: KindMissingCredential, Err: fmt.Errorf("missing credential %s", name)}
}

// FailureKind extracts the kind from an error returned by Run, or "" when the
// error is not a Failure.
func FailureKind(err error) ErrorKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
