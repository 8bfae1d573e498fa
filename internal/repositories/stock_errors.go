package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for stock operations.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorInsufficient indicates requested quantity exceeds availability.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorItemNotFound indicates the inventory item does not exist.
	StockErrorItemNotFound StockErrorCode = "stock_item_not_found"
	// StockErrorInvalidInput indicates a malformed request reached the repository.
	StockErrorInvalidInput StockErrorCode = "stock_invalid_input"
)

// StockError wraps stock-specific failures with machine readable codes.
type StockError struct {
	Op      string
	Code    StockErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, message string, err error) *StockError {
	if message == "" {
		message = string(code)
	}
	return &StockError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
