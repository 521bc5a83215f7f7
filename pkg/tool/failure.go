package tool

import "fmt"

// Failure is a handler-declared business failure. Its code and message
// are passed through to the caller verbatim, unlike unexpected handler
// faults which are replaced with a generic internal error.
type Failure struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Failf builds a Failure with a formatted message.
func Failf(code, format string, args ...interface{}) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}
