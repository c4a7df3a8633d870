// Package errors 定义 html2img 的结构化错误类型。
//
// 每个错误带有机器可读的 Code，调用方可以用 Is 判断错误种类，
// 而不必依赖错误文本：
//
//	if errors.Is(err, errors.CodeFontNotFound) {
//	    // 启动失败：字体文件缺失
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code 是机器可读的错误代码。
type Code string

const (
	// CodeFontNotFound 表示配置的字体文件不存在或不可读，启动时致命。
	CodeFontNotFound Code = "FONT_NOT_FOUND"
	// CodeInvalidFont 表示字体描述本身不合法（缺少名称、字重越界等）。
	CodeInvalidFont Code = "INVALID_FONT"
	// CodeLayout 表示布局阶段拒绝了输入的标记树或选项。
	CodeLayout Code = "LAYOUT_ERROR"
	// CodeRaster 表示光栅化阶段拒绝了矢量输入或选项。
	CodeRaster Code = "RASTER_ERROR"
	// CodeInvalidSizing 表示宽高均未提供。
	CodeInvalidSizing Code = "INVALID_SIZING"
	// CodeInvalidConfig 表示配置文件无法解析或取值非法。
	CodeInvalidConfig Code = "INVALID_CONFIG"
)

// Error 是带错误代码与可选底层原因的错误。
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 返回底层原因，兼容 errors.Is/As。
func (e *Error) Unwrap() error { return e.Cause }

// New 创建带格式化消息的错误。
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 用给定代码包装已有错误。
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is 判断错误链中是否存在指定代码的 *Error。
// 只比较链上第一个 *Error，外层代码优先。
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode 提取错误代码；非 *Error 返回空字符串。
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage 返回不带代码前缀的消息，适合在命令行输出。
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
