package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeExtraction represents a field that could not be read from the page
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeSync represents a missing remaining time while locking the deadline
	ErrorTypeSync ErrorType = "sync"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeBrowser represents browser automation errors
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypePriceCeiling represents a deliberate abort because the price is above the ceiling
	ErrorTypePriceCeiling ErrorType = "price_ceiling"
	// ErrorTypeSubmission represents a failed bid submission
	ErrorTypeSubmission ErrorType = "submission"
	// ErrorTypeExpired represents a deadline that passed before the trigger fired
	ErrorTypeExpired ErrorType = "expired"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// BidError represents an error raised while monitoring or bidding on an auction
type BidError struct {
	Type    ErrorType
	Task    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *BidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Task, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Task, e.Message)
}

// Unwrap returns the underlying error
func (e *BidError) Unwrap() error {
	return e.Err
}

// IsRecoverable returns true if the loop may swallow the error and continue with the next tick
func (e *BidError) IsRecoverable() bool {
	switch e.Type {
	case ErrorTypeExtraction, ErrorTypeSync, ErrorTypeNetwork, ErrorTypeBrowser:
		return true
	default:
		return false
	}
}

// IsType reports whether err is a BidError of the given type
func IsType(err error, errType ErrorType) bool {
	var be *BidError
	if errors.As(err, &be) {
		return be.Type == errType
	}
	return false
}

// IsRecoverable reports whether err is a recoverable BidError.
// Errors that are not BidErrors are treated as transient.
func IsRecoverable(err error) bool {
	var be *BidError
	if errors.As(err, &be) {
		return be.IsRecoverable()
	}
	return true
}

// New creates a new BidError
func New(errType ErrorType, task, message string, err error) *BidError {
	return &BidError{
		Type:    errType,
		Task:    task,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewExtraction creates a new extraction error
func NewExtraction(task, message string, err error) *BidError {
	return New(ErrorTypeExtraction, task, message, err)
}

// NewSync creates a new sync error
func NewSync(task, message string) *BidError {
	return New(ErrorTypeSync, task, message, nil)
}

// NewNetwork creates a new network error
func NewNetwork(task, message string, err error) *BidError {
	return New(ErrorTypeNetwork, task, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(task, message string, err error) *BidError {
	return New(ErrorTypeBrowser, task, message, err)
}

// NewPriceCeiling creates a new price ceiling error
func NewPriceCeiling(task, price, ceiling string) *BidError {
	message := fmt.Sprintf("price %s exceeds ceiling %s", price, ceiling)
	return New(ErrorTypePriceCeiling, task, message, nil)
}

// NewSubmission creates a new submission error
func NewSubmission(task, message string, err error) *BidError {
	return New(ErrorTypeSubmission, task, message, err)
}

// NewExpired creates a new expired deadline error
func NewExpired(task string, overdue time.Duration) *BidError {
	message := fmt.Sprintf("deadline passed %v ago, ended without bidding", overdue)
	return New(ErrorTypeExpired, task, message, nil)
}

// NewValidation creates a new validation error
func NewValidation(task, message string) *BidError {
	return New(ErrorTypeValidation, task, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *BidError {
	return New(ErrorTypeConfiguration, "", message, err)
}
