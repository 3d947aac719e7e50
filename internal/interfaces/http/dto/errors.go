package dto

import (
	"net/http"

	"github.com/erp/receivables/internal/domain/finance"
)

// Error codes returned to clients. Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a backing store cannot be reached
	ErrCodeUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Request error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeDuplicateRequest is used when an idempotency key is replayed
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// Receivables business rule error codes
const (
	ErrCodeInvalidAmount   = "ERR_INVALID_AMOUNT"
	ErrCodeAlreadySettled  = "ERR_ALREADY_SETTLED"
	ErrCodeInvalidStatus   = "ERR_INVALID_STATUS"
	ErrCodeContractVoid    = "ERR_CONTRACT_VOID"
	ErrCodeBalanceMismatch = "ERR_BALANCE_MISMATCH"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidInput:    http.StatusUnprocessableEntity,
	ErrCodeInvalidAmount:   http.StatusUnprocessableEntity,
	ErrCodeAlreadySettled:  http.StatusUnprocessableEntity,
	ErrCodeInvalidStatus:   http.StatusUnprocessableEntity,
	ErrCodeContractVoid:    http.StatusUnprocessableEntity,
	ErrCodeBalanceMismatch: http.StatusUnprocessableEntity,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	finance.CodeNotFound:               ErrCodeNotFound,
	finance.CodeInvalidAmount:          ErrCodeInvalidAmount,
	finance.CodeAlreadySettled:         ErrCodeAlreadySettled,
	finance.CodeBalanceMismatch:        ErrCodeBalanceMismatch,
	finance.CodeConcurrentModification: ErrCodeConcurrencyConflict,
	finance.CodeInvalidStatus:          ErrCodeInvalidStatus,
	finance.CodeContractVoid:           ErrCodeContractVoid,
	finance.CodeInvalidInput:           ErrCodeInvalidInput,
	"ALREADY_EXISTS":                   ErrCodeAlreadyExists,
	"INVALID_STATE":                    ErrCodeInvalidState,
	"UNAUTHORIZED":                     ErrCodeUnauthorized,
	"DUPLICATE_REQUEST":                ErrCodeDuplicateRequest,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in API format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
