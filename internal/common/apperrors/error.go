// Package apperrors provides the error type used across the remoting layer.
// It implements the standard error interface and adds error chaining plus a
// numeric status code that maps onto the protocol's wire status values.
package apperrors

// Error is the interface for application errors. It extends the standard
// error interface with wrapping helpers and status code management. All
// builder methods return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetStatusCode(int) Error               // sets the protocol status code for the error
	StatusCode() int                       // returns the current status code
	UnwrapAll() []error                    // returns all wrapped errors
}
