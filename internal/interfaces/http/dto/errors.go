package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeDuplicateImport is used when a remittance file was already ingested
	ErrCodeDuplicateImport = "ERR_DUPLICATE_IMPORT"
)

// Reconciliation rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeOverAllocation is used when allocations exceed the payment amount
	ErrCodeOverAllocation = "ERR_OVER_ALLOCATION"
	// ErrCodeDuplicateClaimAllocation is used when one claim appears twice in an allocation set
	ErrCodeDuplicateClaimAllocation = "ERR_DUPLICATE_CLAIM_ALLOCATION"
	// ErrCodeInvalidClaimPayer is used when a claim belongs to a different payer
	ErrCodeInvalidClaimPayer = "ERR_INVALID_CLAIM_PAYER"
	// ErrCodePaymentHasAllocations is used when deleting a payment that still has allocations
	ErrCodePaymentHasAllocations = "ERR_PAYMENT_HAS_ALLOCATIONS"
	// ErrCodeRemittanceParse is used when a remittance file cannot be parsed
	ErrCodeRemittanceParse = "ERR_REMITTANCE_PARSE"
	// ErrCodeDownstreamNotification is used when the Claims system cannot be
	// notified about committed reconciliation state
	ErrCodeDownstreamNotification = "ERR_DOWNSTREAM_NOTIFICATION"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the request body exceeds the size cap
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateImport:     http.StatusConflict,

	// Reconciliation rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:             http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:             http.StatusUnprocessableEntity,
	ErrCodeOverAllocation:           http.StatusUnprocessableEntity,
	ErrCodeDuplicateClaimAllocation: http.StatusUnprocessableEntity,
	ErrCodeInvalidClaimPayer:        http.StatusUnprocessableEntity,
	ErrCodePaymentHasAllocations:    http.StatusUnprocessableEntity,
	ErrCodeRemittanceParse:          http.StatusUnprocessableEntity,

	// Downstream dependency failures -> 502 Bad Gateway
	ErrCodeDownstreamNotification: http.StatusBadGateway,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain-layer error codes to the wire format
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                  ErrCodeNotFound,
	"ALREADY_EXISTS":             ErrCodeAlreadyExists,
	"VALIDATION":                 ErrCodeValidation,
	"INVALID_STATE":              ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":       ErrCodeConcurrencyConflict,
	"DUPLICATE_IMPORT":           ErrCodeDuplicateImport,
	"OVER_ALLOCATION":            ErrCodeOverAllocation,
	"DUPLICATE_CLAIM_ALLOCATION": ErrCodeDuplicateClaimAllocation,
	"INVALID_CLAIM_PAYER":        ErrCodeInvalidClaimPayer,
	"PAYMENT_HAS_ALLOCATIONS":    ErrCodePaymentHasAllocations,
	"REMITTANCE_PARSE":           ErrCodeRemittanceParse,
	"DOWNSTREAM_NOTIFICATION":    ErrCodeDownstreamNotification,
	"BAD_REQUEST":                ErrCodeBadRequest,
	"INTERNAL_ERROR":             ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the wire format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
