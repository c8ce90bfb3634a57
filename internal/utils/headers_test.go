package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法名称-数字", "X-Request-ID-123", "1", false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-小写", "content-length", "123", true},
		{"非法名称-空格", "User Agent", "x", true},
		{"非法名称-下划线", "User_Agent", "x", true},
		{"非法名称-空字符串", "", "x", true},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "X-Bad", "value\x00with\x01null", true},
		{"非法值-非ASCII", "X-Lang", "中文", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	ok := http.Header{"User-Agent": {"a"}, "Accept": {"*/*"}}
	if err := validator.Validate(ok); err != nil {
		t.Errorf("合法头部集合不应报错: %v", err)
	}

	bad := http.Header{"User-Agent": {"a"}, "Connection": {"close"}}
	if err := validator.Validate(bad); err == nil {
		t.Error("包含禁止头部应报错")
	}
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"非敏感头部", "User-Agent", "Mozilla/5.0", "Mozilla/5.0"},
		{"Bearer令牌", "Authorization", "Bearer abcdefghijkl", "Bearer ***"},
		{"长API Key", "X-Api-Key", "1234567890abcdef", "1234***cdef"},
		{"短密钥", "X-Secret", "abc", "***"},
		{"Cookie", "Cookie", "session=1", "sess***on=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.key, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}

	s := redactor.RedactToString(http.Header{"X-Token": {"tok"}, "Accept": {"*/*"}})
	if s != "Accept: */*, X-Token: ***" {
		t.Errorf("RedactToString() = %q", s)
	}
}
