package services

import "fmt"

type InvalidCredentialError struct{ Message string }

func (e *InvalidCredentialError) Error() string { return e.Message }

// UpstreamRejectedError is returned when the realtime API answers the token
// request with a non-2xx status. Details holds the decoded upstream body.
type UpstreamRejectedError struct {
	Status  int
	Details interface{}
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected token request with status %d", e.Status)
}

type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("token exchange transport failure: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
