package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeNotAuthenticated      ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeForbidden             ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest            ErrorCode = "BAD_REQUEST"
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeInsufficientCredits   ErrorCode = "INSUFFICIENT_CREDITS"
	ErrCodeAlreadyApplied        ErrorCode = "ALREADY_APPLIED"
	ErrCodeOfferUnavailable      ErrorCode = "OFFER_UNAVAILABLE"
	ErrCodeAlreadyCompleted      ErrorCode = "ALREADY_COMPLETED"
	ErrCodeNoAcceptedApplication ErrorCode = "NO_ACCEPTED_APPLICATION"
	ErrCodeStorageConflict       ErrorCode = "STORAGE_CONFLICT"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInsufficientCredits:
		return http.StatusUnprocessableEntity
	case ErrCodeAlreadyApplied, ErrCodeAlreadyCompleted,
		ErrCodeOfferUnavailable, ErrCodeNoAcceptedApplication,
		ErrCodeStorageConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is проверяет код ошибки через errors.As, чтобы работать и с обёрнутыми ошибками.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool  { return Is(err, ErrCodeNotFound) }
func IsForbidden(err error) bool { return Is(err, ErrCodeForbidden) }

// AsAppError извлекает *AppError из цепочки ошибок.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

var (
	ErrOfferNotFound         = New(ErrCodeNotFound, "запрос не найден")
	ErrApplicationNotFound   = New(ErrCodeNotFound, "заявка не найдена")
	ErrTransactionNotFound   = New(ErrCodeNotFound, "обмен не найден")
	ErrUserNotFound          = New(ErrCodeNotFound, "пользователь не найден")
	ErrNotAuthenticated      = New(ErrCodeNotAuthenticated, "требуется авторизация")
	ErrForbidden             = New(ErrCodeForbidden, "недостаточно прав")
	ErrInsufficientCredits   = New(ErrCodeInsufficientCredits, "недостаточно временных кредитов")
	ErrAlreadyApplied        = New(ErrCodeAlreadyApplied, "вы уже подали заявку на этот запрос")
	ErrOfferUnavailable      = New(ErrCodeOfferUnavailable, "запрос недоступен для заявок")
	ErrAlreadyCompleted      = New(ErrCodeAlreadyCompleted, "запрос уже завершён")
	ErrNoAcceptedApplication = New(ErrCodeNoAcceptedApplication, "нет принятой заявки на этот запрос")
	ErrStorageConflict       = New(ErrCodeStorageConflict, "конкурентное изменение, повторите попытку")
)
