package app

import "fmt"

// DomainError is an error the HTTP edge maps directly onto a response:
// status code, stable machine-readable code, human message, and optional
// structured details. Anything else surfacing at the edge becomes a 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}
