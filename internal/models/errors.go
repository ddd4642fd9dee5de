package models

import "errors"

// ConflictError indicates a duplicate active scan or workflow for the same key
// (one active scan per cluster, one active workflow per resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError indicates an unknown session, workflow, or cluster id.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates a malformed request, e.g. an unknown filter kind.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConnectivityError indicates the inventory or cluster API was unreachable.
// It is recorded into the session/workflow log and surfaces as a terminal
// failed/error status, never a crash of the coordinator.
type ConnectivityError struct {
	Message string
	Err     error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// AnalysisError indicates the analyzer or patch generator returned no usable result.
type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

func IsAnalysis(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae)
}
