package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("文件不存在时使用内置模板且不写盘", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		loader := NewHeaderConfigLoader(configPath)

		cfg, err := loader.LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if cfg.Headers["user-agent"] == "" {
			t.Errorf("内置模板应提供User-Agent: %v", cfg.Headers)
		}
		if _, err := os.Stat(configPath); !os.IsNotExist(err) {
			t.Error("加载时不应生成配置文件")
		}
	})

	t.Run("加载已存在的配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		content := "headers:\n  User-Agent: \"Test Bot/1.0\"\n  X-Custom: \"test value\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("写入测试配置失败: %v", err)
		}

		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		// viper会将键名转换为小写
		if cfg.Headers["user-agent"] != "Test Bot/1.0" || cfg.Headers["x-custom"] != "test value" {
			t.Errorf("配置内容不匹配: %v", cfg.Headers)
		}
	})

	t.Run("空headers初始化为空map", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		if err := os.WriteFile(configPath, []byte("headers:\n"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if cfg.Headers == nil {
			t.Fatal("Headers map应该被初始化")
		}
	})

	t.Run("YAML格式错误返回ConfigError", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		if err := os.WriteFile(configPath, []byte("headers: [unclosed\n"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewHeaderConfigLoader(configPath).LoadConfig()
		var cfgErr *models.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("期望ConfigError, 实际 %v", err)
		}
	})

	t.Run("文件过大", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		big := "headers:\n  X-Big: \"" + strings.Repeat("a", MaxConfigFileSize) + "\"\n"
		if err := os.WriteFile(configPath, []byte(big), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Error("超过大小限制应报错")
		}
	})
}

func TestHeaderConfigLoader_WriteTemplate(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "configs", "headers.yaml")
	loader := NewHeaderConfigLoader(configPath)

	created, err := loader.WriteTemplate()
	if err != nil || !created {
		t.Fatalf("WriteTemplate() = %v, %v", created, err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil || string(data) != DefaultHeaderTemplate() {
		t.Fatalf("模板内容不匹配: %v", err)
	}

	created, err = loader.WriteTemplate()
	if err != nil || created {
		t.Errorf("已存在时不应覆盖: created=%v err=%v", created, err)
	}
}

func TestNewHeaderConfigLoader_DefaultPath(t *testing.T) {
	if got := NewHeaderConfigLoader("").Path(); got != DefaultConfigFile {
		t.Errorf("Path() = %q, want %q", got, DefaultConfigFile)
	}
}
