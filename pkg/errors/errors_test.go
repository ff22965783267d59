package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessErrorUnwrap(t *testing.T) {
	err := WrapLoanAlreadyClosed("L-1")

	assert.True(t, errors.Is(err, ErrLoanAlreadyClosed))
	assert.Equal(t, ErrCodeLoanAlreadyClosed, err.Code)
	assert.Contains(t, err.Error(), "L-1")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid amount", WrapInvalidAmount("0"), http.StatusBadRequest},
		{"already paid", WrapAlreadyPaid("2024-01-15"), http.StatusConflict},
		{"closed", WrapLoanAlreadyClosed("x"), http.StatusConflict},
		{"not found", WrapLoanNotFound("x"), http.StatusNotFound},
		{"vehicle not found", WrapVehicleNotFound("1HGCM82633A004352"), http.StatusNotFound},
		{"duplicate vin", WrapVehicleAlreadyExists("1HGCM82633A004352"), http.StatusConflict},
		{"duplicate admin", WrapAdminAlreadyExists("ops@example.com"), http.StatusConflict},
		{"declined", WrapPaymentDeclined("requires_action"), http.StatusPaymentRequired},
		{"wrapped twice", fmt.Errorf("pay: %w", WrapInvalidCredentials()), http.StatusUnauthorized},
		{"database", WrapDatabaseError(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestProcessorErrorKeepsBothCauses(t *testing.T) {
	cause := errors.New("card_declined")
	err := WrapProcessorError(cause)

	assert.True(t, errors.Is(err, ErrPaymentDeclined))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Payment failed", Message(err))
}
