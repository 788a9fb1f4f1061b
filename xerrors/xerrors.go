// Package xerrors 提供 meshroute 各组件共用的错误处理工具。
//
// 约定：
//   - 组件使用 xerrors.New 声明哨兵错误，调用方通过 xerrors.Is 判断
//   - 跨层返回时使用 Wrap/Wrapf 追加上下文，保留错误链
//   - 需要同时保留“错误类别”和“底层原因”时使用 Mark
//   - 需要机器可读分类（日志、HTTP 响应）时使用 WithCode
package xerrors

import (
	"errors"
	"fmt"
)

// 通用哨兵错误
var (
	// ErrNotFound 目标不存在
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput 输入参数或配置无效
	ErrInvalidInput = errors.New("invalid input")
)

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark 将 err 归入 sentinel 类别。
//
// 返回的错误同时满足 Is(result, sentinel) 与 Is(result, err)，
// 错误消息为 "<sentinel>: <err>"。
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return &markedError{cause: err, mark: sentinel}
}

type markedError struct {
	cause error
	mark  error
}

func (e *markedError) Error() string {
	return fmt.Sprintf("%v: %v", e.mark, e.cause)
}

func (e *markedError) Is(target error) bool {
	return errors.Is(e.mark, target)
}

func (e *markedError) Unwrap() error {
	return e.cause
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，没有则返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// MultiError 合并多个错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，nil 会被忽略。
// 常用于 Close 阶段依次释放多个资源。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	Errorf = fmt.Errorf
)
