// Package errors 提供應用程式錯誤處理
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInvalidSlot 玩家位置超出 1/2
	ErrCodeInvalidSlot = "INVALID_SLOT"
	// ErrCodeInvalidPhase 房間階段不允許此操作
	ErrCodeInvalidPhase = "INVALID_PHASE"
	// ErrCodeBufferFull 發送緩衝區已滿
	ErrCodeBufferFull = "BUFFER_FULL"
	// ErrCodeUnavailable 服務不可用
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is：同一錯誤碼即視為相同
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝底層錯誤並賦予錯誤碼
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回帶有詳細資訊的副本（預定義錯誤是共享的，不可原地修改）
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrInvalidSlot 玩家位置必須是 1 或 2
	ErrInvalidSlot = New(ErrCodeInvalidSlot, "slot must be 1 or 2")

	// ErrInvalidPhase 房間目前階段不接受此操作
	ErrInvalidPhase = New(ErrCodeInvalidPhase, "operation not allowed in current room phase")

	// ErrSendBufferFull 連線發送佇列已滿
	ErrSendBufferFull = New(ErrCodeBufferFull, "send buffer full")

	// ErrConnectionClosed 連線已關閉
	ErrConnectionClosed = New(ErrCodeUnavailable, "connection closed")
)

// IsInvalidSlot 檢查是否為無效位置錯誤
func IsInvalidSlot(err error) bool {
	return hasCode(err, ErrCodeInvalidSlot)
}

// IsInvalidInput 檢查是否為無效輸入錯誤
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsInvalidPhase 檢查是否為階段錯誤
func IsInvalidPhase(err error) bool {
	return hasCode(err, ErrCodeInvalidPhase)
}

// IsBufferFull 檢查是否為緩衝區滿錯誤
func IsBufferFull(err error) bool {
	return hasCode(err, ErrCodeBufferFull)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
