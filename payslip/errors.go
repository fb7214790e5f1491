package payslip

import (
	"errors"
	"fmt"
)

// ErrEmployeeNotFound is returned when the referenced employee does not
// exist. Use with errors.Is().
var ErrEmployeeNotFound = errors.New("employee not found")

// NotFoundError carries the missing employee's ID.
type NotFoundError struct {
	EmployeeID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("employee %s not found", e.EmployeeID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEmployeeNotFound
}
