package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

// SearchFlags 需要校验的命令行参数(已与配置文件合并)
type SearchFlags struct {
	URL       string
	URLFile   string
	Selectors []string
	Limit     int
	WaitTime  int
	Timeout   int
	RateLimit float64
}

// ValidateFlags 验证命令行标志
func ValidateFlags(f SearchFlags) error {
	if f.URL != "" && f.URLFile != "" {
		return fmt.Errorf("--url 和 --url-file 只能指定一个")
	}
	if f.URL == "" && f.URLFile == "" {
		return fmt.Errorf("必须指定 --url 或 --url-file")
	}

	if f.URL != "" {
		if err := models.ValidateURL(f.URL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if len(f.Selectors) == 0 {
		return fmt.Errorf("必须通过 --selector 或 --css-file 提供至少一个选择器")
	}

	if f.Limit < 0 {
		return fmt.Errorf("页面数限制不能为负数,当前值: %d", f.Limit)
	}

	if f.WaitTime < 0 || f.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", f.WaitTime)
	}

	if f.Timeout < 0 {
		return fmt.Errorf("超时时间不能为负数,当前值: %d", f.Timeout)
	}

	if f.RateLimit < 0 {
		return fmt.Errorf("请求速率不能为负数,当前值: %.2f", f.RateLimit)
	}

	return nil
}

// NormalizeURL 规范化URL,没有协议时默认使用https
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}
