package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认头部配置文件路径
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// DefaultHeaderTemplate 返回内置的头部配置模板
func DefaultHeaderTemplate() string {
	return defaultHeaderTemplate
}

// HeaderConfigLoader 头部配置文件加载器
type HeaderConfigLoader struct {
	configPath string
}

// NewHeaderConfigLoader 创建加载器,路径为空时使用默认路径
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &HeaderConfigLoader{configPath: configPath}
}

// Path 配置文件路径
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// WriteTemplate 配置文件不存在时写入模板,已存在则不覆盖
// 返回是否新建了文件
func (hcl *HeaderConfigLoader) WriteTemplate() (bool, error) {
	if _, err := os.Stat(hcl.configPath); err == nil {
		return false, nil
	}

	dir := filepath.Dir(hcl.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.configPath, err)
	}
	return true, nil
}

// ValidateFileSize 验证配置文件大小
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", hcl.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// LoadConfig 加载头部配置
// 文件不存在时使用内置模板,不会在磁盘上生成文件
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if _, err := os.Stat(hcl.configPath); os.IsNotExist(err) {
		utils.Debugf("头部配置文件不存在 [%s], 使用内置模板", hcl.configPath)
		if err := v.ReadConfig(strings.NewReader(defaultHeaderTemplate)); err != nil {
			return nil, &models.ConfigError{FilePath: "<embedded>", Cause: err}
		}
		return hcl.unmarshal(v)
	}

	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	v.SetConfigFile(hcl.configPath)
	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程锁定时降级为空配置
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认头部", hcl.configPath)
			return &models.HeaderConfig{Headers: make(map[string]string)}, nil
		}
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	return hcl.unmarshal(v)
}

func (hcl *HeaderConfigLoader) unmarshal(v *viper.Viper) (*models.HeaderConfig, error) {
	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	return &config, nil
}
