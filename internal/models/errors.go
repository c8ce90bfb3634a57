package models

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	KindNetwork         ErrorKind = "network"          // 请求或页面导航未能完成
	KindParse           ErrorKind = "parse"            // XML/CSS/HTML无法解析
	KindInvalidInput    ErrorKind = "invalid_input"    // URL或选择器参数缺失/格式错误
	KindResourceCleanup ErrorKind = "resource_cleanup" // 浏览器或页面无法关闭
)

// 各类别的哨兵错误,配合errors.Is使用
var (
	ErrNetwork         = errors.New("网络请求失败")
	ErrParse           = errors.New("解析失败")
	ErrInvalidInput    = errors.New("无效输入")
	ErrResourceCleanup = errors.New("资源清理失败")
)

// SearchError 搜索过程中的分类错误
type SearchError struct {
	Kind  ErrorKind // 错误类别
	Op    string    // 出错的操作,如 "fetch", "navigate", "sitemap"
	URL   string    // 相关URL(可为空)
	Cause error     // 底层错误
}

// Error 实现error接口
func (e *SearchError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.sentinel().Error(), e.Op)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 支持errors.Unwrap
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrNetwork) 等判断按类别匹配
func (e *SearchError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *SearchError) sentinel() error {
	switch e.Kind {
	case KindNetwork:
		return ErrNetwork
	case KindParse:
		return ErrParse
	case KindInvalidInput:
		return ErrInvalidInput
	case KindResourceCleanup:
		return ErrResourceCleanup
	}
	return errors.New(string(e.Kind))
}

// NewNetworkError 创建网络错误
func NewNetworkError(op, url string, cause error) *SearchError {
	return &SearchError{Kind: KindNetwork, Op: op, URL: url, Cause: cause}
}

// NewParseError 创建解析错误
func NewParseError(op, url string, cause error) *SearchError {
	return &SearchError{Kind: KindParse, Op: op, URL: url, Cause: cause}
}

// NewInvalidInputError 创建无效输入错误
func NewInvalidInputError(op, value string, cause error) *SearchError {
	return &SearchError{Kind: KindInvalidInput, Op: op, URL: value, Cause: cause}
}

// NewCleanupError 创建资源清理错误
func NewCleanupError(op, url string, cause error) *SearchError {
	return &SearchError{Kind: KindResourceCleanup, Op: op, URL: url, Cause: cause}
}

// SelectorError 单个选择器求值失败
// 只影响该选择器本身,同一页面的其他选择器照常求值
type SelectorError struct {
	Selector string `json:"selector"` // 出错的选择器
	Message  string `json:"message"`  // 错误描述
}

// Error 实现error接口
func (e *SelectorError) Error() string {
	return fmt.Sprintf("选择器 %q 求值失败: %s", e.Selector, e.Message)
}
