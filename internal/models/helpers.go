package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// OriginOf 返回URL的 scheme://host[:port]
func OriginOf(urlStr string) (string, error) {
	if err := ValidateURL(urlStr); err != nil {
		return "", NewInvalidInputError("origin", urlStr, err)
	}
	parsed, _ := url.Parse(urlStr)
	return parsed.Scheme + "://" + parsed.Host, nil
}

// CacheBaseName 缓存文件基础名: 去掉协议头,路径分隔符替换为下划线
// 例如 https://example.com:8080 -> example.com:8080
func CacheBaseName(origin string) string {
	name := strings.TrimPrefix(origin, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimRight(name, "/")
	return strings.ReplaceAll(name, "/", "_")
}

// JoinSelectors 以逗号连接选择器,用于报告展示
func JoinSelectors(selectors []string) string {
	return strings.Join(selectors, ", ")
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
