package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrInvalidTerms                    = errors.New("invalid lease terms")
	ErrInvalidAmount                   = errors.New("invalid payment amount")
	ErrUnknownOrAlreadyPaidInstallment = errors.New("unknown or already paid installment")
	ErrAlreadyPaid                     = errors.New("installment already paid")
	ErrLoanAlreadyClosed               = errors.New("loan is already closed")
	ErrBalanceUnderflow                = errors.New("payment would drive amount financed below zero")
	ErrLedgerInconsistent              = errors.New("ledger state is inconsistent")
	ErrInvalidStatusTransition         = errors.New("invalid payment status transition")
	ErrLoanNotFound                    = errors.New("loan not found")
	ErrPaymentNotFound                 = errors.New("payment not found")
	ErrCustomerNotFound                = errors.New("customer not found")
	ErrCustomerAlreadyExists           = errors.New("customer already exists")
	ErrVehicleUnavailable              = errors.New("vehicle is not available for lease")
	ErrVehicleNotFound                 = errors.New("vehicle not found")
	ErrVehicleAlreadyExists            = errors.New("vehicle already exists")
	ErrAdminAlreadyExists              = errors.New("admin already exists")
	ErrInvalidCredentials              = errors.New("invalid credentials")
	ErrForbidden                       = errors.New("forbidden")
	ErrPaymentDeclined                 = errors.New("payment was not completed by the processor")
	ErrProcessorUnavailable            = errors.New("payment processor is not configured")
	ErrAmountBelowProcessorMinimum     = errors.New("amount is below the processor minimum")
	ErrLoanBusy                        = errors.New("another payment for this loan is in progress")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidTerms                    = "INVALID_TERMS"
	ErrCodeInvalidAmount                   = "INVALID_AMOUNT"
	ErrCodeUnknownOrAlreadyPaidInstallment = "UNKNOWN_OR_ALREADY_PAID_INSTALLMENT"
	ErrCodeAlreadyPaid                     = "ALREADY_PAID"
	ErrCodeLoanAlreadyClosed               = "LOAN_ALREADY_CLOSED"
	ErrCodeBalanceUnderflow                = "BALANCE_UNDERFLOW"
	ErrCodeLedgerInconsistent              = "LEDGER_INCONSISTENT"
	ErrCodeInvalidStatusTransition         = "INVALID_STATUS_TRANSITION"
	ErrCodeLoanNotFound                    = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound                 = "PAYMENT_NOT_FOUND"
	ErrCodeCustomerNotFound                = "CUSTOMER_NOT_FOUND"
	ErrCodeCustomerAlreadyExists           = "CUSTOMER_ALREADY_EXISTS"
	ErrCodeVehicleUnavailable              = "VEHICLE_UNAVAILABLE"
	ErrCodeVehicleNotFound                 = "VEHICLE_NOT_FOUND"
	ErrCodeVehicleAlreadyExists            = "VEHICLE_ALREADY_EXISTS"
	ErrCodeAdminAlreadyExists              = "ADMIN_ALREADY_EXISTS"
	ErrCodeInvalidCredentials              = "INVALID_CREDENTIALS"
	ErrCodeForbidden                       = "FORBIDDEN"
	ErrCodePaymentDeclined                 = "PAYMENT_DECLINED"
	ErrCodeProcessorUnavailable            = "PROCESSOR_UNAVAILABLE"
	ErrCodeAmountBelowProcessorMinimum     = "AMOUNT_BELOW_PROCESSOR_MINIMUM"
	ErrCodeLoanBusy                        = "LOAN_BUSY"
	ErrCodeDatabaseError                   = "DATABASE_ERROR"
	ErrCodeCacheError                      = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapInvalidTerms(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidTerms, reason, ErrInvalidTerms)
}

func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidAmount,
	)
}

func WrapUnknownOrAlreadyPaidInstallment(dueDate string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnknownOrAlreadyPaidInstallment,
		fmt.Sprintf("Due date %s is not an unpaid installment of this loan", dueDate),
		ErrUnknownOrAlreadyPaidInstallment,
	)
}

func WrapAlreadyPaid(dueDate string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyPaid,
		fmt.Sprintf("Installment due %s already has a completed payment", dueDate),
		ErrAlreadyPaid,
	)
}

func WrapLoanAlreadyClosed(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyClosed,
		fmt.Sprintf("Loan with ID %s is already closed", loanID),
		ErrLoanAlreadyClosed,
	)
}

func WrapBalanceUnderflow(loanID, balance, decrement string) *BusinessError {
	return NewBusinessError(
		ErrCodeBalanceUnderflow,
		fmt.Sprintf("Loan %s has %s financed, cannot apply %s", loanID, balance, decrement),
		ErrBalanceUnderflow,
	)
}

func WrapLedgerInconsistent(loanID, detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeLedgerInconsistent,
		fmt.Sprintf("Loan %s: %s", loanID, detail),
		ErrLedgerInconsistent,
	)
}

func WrapInvalidStatusTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStatusTransition,
		fmt.Sprintf("Payment status cannot change from %s to %s", from, to),
		ErrInvalidStatusTransition,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapCustomerNotFound(customerID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerNotFound,
		fmt.Sprintf("Customer with ID %s not found", customerID),
		ErrCustomerNotFound,
	)
}

func WrapCustomerAlreadyExists(email string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerAlreadyExists,
		fmt.Sprintf("Customer with email %s already exists", email),
		ErrCustomerAlreadyExists,
	)
}

func WrapVehicleUnavailable(vehicleID, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeVehicleUnavailable,
		fmt.Sprintf("Vehicle with ID %s %s", vehicleID, reason),
		ErrVehicleUnavailable,
	)
}

func WrapVehicleNotFound(vehicle string) *BusinessError {
	return NewBusinessError(
		ErrCodeVehicleNotFound,
		fmt.Sprintf("Vehicle %s not found", vehicle),
		ErrVehicleNotFound,
	)
}

func WrapVehicleAlreadyExists(vin string) *BusinessError {
	return NewBusinessError(
		ErrCodeVehicleAlreadyExists,
		fmt.Sprintf("Vehicle with VIN %s already exists", vin),
		ErrVehicleAlreadyExists,
	)
}

func WrapAdminAlreadyExists(email string) *BusinessError {
	return NewBusinessError(
		ErrCodeAdminAlreadyExists,
		fmt.Sprintf("Admin with email %s already exists", email),
		ErrAdminAlreadyExists,
	)
}

func WrapInvalidCredentials() *BusinessError {
	return NewBusinessError(ErrCodeInvalidCredentials, "Invalid email or password", ErrInvalidCredentials)
}

func WrapForbidden(message string) *BusinessError {
	return NewBusinessError(ErrCodeForbidden, message, ErrForbidden)
}

func WrapPaymentDeclined(status string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentDeclined,
		fmt.Sprintf("Payment not completed (status: %s)", status),
		ErrPaymentDeclined,
	)
}

func WrapProcessorError(err error) *BusinessError {
	return NewBusinessError(ErrCodePaymentDeclined, "Payment failed", errors.Join(ErrPaymentDeclined, err))
}

func WrapProcessorUnavailable() *BusinessError {
	return NewBusinessError(ErrCodeProcessorUnavailable, "Card payments are not configured", ErrProcessorUnavailable)
}

func WrapAmountBelowProcessorMinimum(amount string, minimumCents int64) *BusinessError {
	return NewBusinessError(
		ErrCodeAmountBelowProcessorMinimum,
		fmt.Sprintf("Amount %s is below the minimum charge of %d cents", amount, minimumCents),
		ErrAmountBelowProcessorMinimum,
	)
}

func WrapLoanBusy(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanBusy,
		fmt.Sprintf("Loan %s is locked by another payment, retry shortly", loanID),
		ErrLoanBusy,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code returns the business error code carried by err, or an empty string.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

var statusByCode = map[string]int{
	ErrCodeInvalidTerms:                    http.StatusBadRequest,
	ErrCodeInvalidAmount:                   http.StatusBadRequest,
	ErrCodeUnknownOrAlreadyPaidInstallment: http.StatusBadRequest,
	ErrCodeAmountBelowProcessorMinimum:     http.StatusBadRequest,
	ErrCodePaymentDeclined:                 http.StatusPaymentRequired,
	ErrCodeAlreadyPaid:                     http.StatusConflict,
	ErrCodeLoanAlreadyClosed:               http.StatusConflict,
	ErrCodeInvalidStatusTransition:         http.StatusConflict,
	ErrCodeCustomerAlreadyExists:           http.StatusConflict,
	ErrCodeVehicleUnavailable:              http.StatusConflict,
	ErrCodeVehicleAlreadyExists:            http.StatusConflict,
	ErrCodeAdminAlreadyExists:              http.StatusConflict,
	ErrCodeLoanBusy:                        http.StatusConflict,
	ErrCodeLoanNotFound:                    http.StatusNotFound,
	ErrCodePaymentNotFound:                 http.StatusNotFound,
	ErrCodeCustomerNotFound:                http.StatusNotFound,
	ErrCodeVehicleNotFound:                 http.StatusNotFound,
	ErrCodeInvalidCredentials:              http.StatusUnauthorized,
	ErrCodeForbidden:                       http.StatusForbidden,
	ErrCodeProcessorUnavailable:            http.StatusServiceUnavailable,
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[Code(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Message returns the user facing message of a business error.
func Message(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	return "unexpected error"
}
