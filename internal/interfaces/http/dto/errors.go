package dto

import "net/http"

// API error codes. Domain errors carry bare codes such as "NOT_FOUND";
// NormalizeErrorCode maps them onto these.
const (
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeTransactionFailed means the whole operation was rolled back and may be retried
	ErrCodeTransactionFailed = "ERR_TRANSACTION_FAILED"

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeInvalidMoney       = "ERR_INVALID_MONEY"
	ErrCodeInvalidDate        = "ERR_INVALID_DATE"
	ErrCodeInvalidDiscount    = "ERR_INVALID_DISCOUNT"
	ErrCodeInvalidCampaign    = "ERR_INVALID_CAMPAIGN"
	ErrCodeInvalidPayment     = "ERR_INVALID_PAYMENT_METHOD"
	ErrCodeInvalidLine        = "ERR_INVALID_LINE"
	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput       = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON        = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge       = "ERR_BODY_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeIntegrityViolation  = "ERR_INTEGRITY_VIOLATION"
	ErrCodeDuplicateRequest    = "ERR_DUPLICATE_REQUEST"

	// ErrCodeInvalidState covers a cancelled sale being edited or a grant in the wrong status
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

var httpStatus = map[string]int{
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeTransactionFailed: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeInvalidMoney:       http.StatusBadRequest,
	ErrCodeInvalidDate:        http.StatusBadRequest,
	ErrCodeInvalidDiscount:    http.StatusBadRequest,
	ErrCodeInvalidCampaign:    http.StatusBadRequest,
	ErrCodeInvalidPayment:     http.StatusBadRequest,
	ErrCodeInvalidLine:        http.StatusBadRequest,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeInvalidJSON:        http.StatusBadRequest,
	ErrCodeBodyTooLarge:       http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeIntegrityViolation:  http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the status for an API error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var domainCodes = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"INTEGRITY_VIOLATION":    ErrCodeIntegrityViolation,
	"DUPLICATE_REQUEST":      ErrCodeDuplicateRequest,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"INVALID_STATE":          ErrCodeInvalidState,
	"TRANSACTION_FAILED":     ErrCodeTransactionFailed,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"VALIDATION_ERROR":       ErrCodeValidation,
	"MISSING_FIELD":          ErrCodeValidationRequired,
	"INVALID_MONEY":          ErrCodeInvalidMoney,
	"INVALID_AMOUNT":         ErrCodeInvalidMoney,
	"INVALID_PRICE":          ErrCodeInvalidMoney,
	"INVALID_CASHBACK":       ErrCodeInvalidMoney,
	"INVALID_DATE":           ErrCodeInvalidDate,
	"INVALID_DISCOUNT":       ErrCodeInvalidDiscount,
	"INVALID_CAMPAIGN":       ErrCodeInvalidCampaign,
	"INVALID_PAYMENT_METHOD": ErrCodeInvalidPayment,
	"INVALID_QUANTITY":       ErrCodeInvalidLine,
	"INVALID_COMPANION":      ErrCodeInvalidLine,
	"INVALID_SALE":           ErrCodeInvalidInput,
	"BAD_REQUEST":            ErrCodeBadRequest,
	"INTERNAL_ERROR":         ErrCodeInternal,
}

// NormalizeErrorCode maps a domain error code to its API code.
// API codes and unknown codes pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}
