package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 业务错误码
type Code string

const (
	CodeSelfReference    Code = "SELF_REFERENCE"
	CodeAlreadyFriends   Code = "ALREADY_FRIENDS"
	CodeBlocked          Code = "BLOCKED"
	CodeDuplicateRequest Code = "DUPLICATE_REQUEST"
	CodeNotFound         Code = "NOT_FOUND"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNotFriends       Code = "NOT_FRIENDS"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInternal         Code = "INTERNAL"
)

// Error 业务错误，errors.Is按错误码比较
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// 可与errors.Is比较的哨兵错误
var (
	ErrSelfReference    = &Error{Code: CodeSelfReference, Message: "cannot target yourself"}
	ErrAlreadyFriends   = &Error{Code: CodeAlreadyFriends, Message: "users are already friends"}
	ErrBlocked          = &Error{Code: CodeBlocked, Message: "one of the users has blocked the other"}
	ErrDuplicateRequest = &Error{Code: CodeDuplicateRequest, Message: "a pending friend request already exists"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "record not found"}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized, Message: "not allowed to act on this record"}
	ErrNotFriends       = &Error{Code: CodeNotFriends, Message: "users are not friends"}
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// NewError 创建业务错误
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument 参数错误
func InvalidArgument(format string, args ...interface{}) *Error {
	return NewError(CodeInvalidArgument, format, args...)
}

// NotFound 记录不存在
func NotFound(format string, args ...interface{}) *Error {
	return NewError(CodeNotFound, format, args...)
}

// Internal 包装存储层错误
func Internal(cause error, msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

// Error 实现error
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 错误码相同即视为相等
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// ErrorCode 错误码字符串
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// ErrorMessage 不含底层原因的错误描述
func (e *Error) ErrorMessage() string {
	return e.Message
}

// HTTPStatus 错误码对应的HTTP状态
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeSelfReference, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeBlocked:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyFriends, CodeDuplicateRequest, CodeNotFriends:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 提取错误码，非业务错误视为INTERNAL
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
