package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Measurement path
	Timeout          Code = "timeout"
	NoReply          Code = "no_reply"
	DataCorrupt      Code = "data_corrupt"
	ChecksumMismatch Code = "checksum_mismatch"
	InvalidSample    Code = "invalid_sample"

	// Service/control plane
	Busy          Code = "busy"
	UnknownSensor Code = "unknown_sensor"
	Unsupported   Code = "unsupported"

	Error Code = "error" // generic fallback
)

// E is an optional wrapper when context and a cause are worth keeping.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
