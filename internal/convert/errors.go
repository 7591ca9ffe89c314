// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import "fmt"

// DeserializationError reports a subject file whose content is not a
// pickled mapping holding "data" and "labels" arrays.
type DeserializationError struct {
	Path string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserializing %s: %v", e.Path, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// ShapeError reports arrays whose dimensions break the subject record
// invariants: matching trial counts, at least MinChannels channels and
// at least four label columns.
type ShapeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Path == "" {
		return "invalid shape: " + e.Reason
	}
	return fmt.Sprintf("invalid shape in %s: %s", e.Path, e.Reason)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// IOError reports a failure to read an input or to create or write an output.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
