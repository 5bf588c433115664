package todo

import (
	"errors"
	"fmt"
)

const (
	CodeValidation = "validation"
	CodeInvalidID  = "invalid_id"
	CodeNotFound   = "not_found"
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func NewInvalidIDError() *Error {
	return &Error{Code: CodeInvalidID, Message: "Invalid id"}
}

func NewNotFoundError() *Error {
	return &Error{Code: CodeNotFound, Message: "Not found"}
}

func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool {
	return ErrorCode(err) == CodeValidation
}

func IsInvalidID(err error) bool {
	return ErrorCode(err) == CodeInvalidID
}

func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}
