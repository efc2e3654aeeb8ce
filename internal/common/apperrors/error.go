// Package apperrors provides the error type used across the portal client.
// Errors carry an HTTP-style status code and can wrap other errors while
// remaining compatible with errors.Is and errors.As.
package apperrors

// Error is the application error interface. Methods that derive a new error
// never mutate the receiver, so package-level sentinel errors can be shared.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // fresh error using the receiver as template
	Msg(msg string) Error                  // new message, wraps the receiver
	MsgErr(msg string, err ...error) Error // new message, wraps receiver and extra errors
	Err(err ...error) Error                // attaches additional errors
	SetStatusCode(int) Error               // sets the HTTP status code
	StatusCode() int
	UnwrapAll() []error
}
