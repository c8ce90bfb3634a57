package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/selectorhound/internal/config"
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/124.0.0.0 Safari/537.36"

// HeaderManager 合并 默认 < headers.yaml < 命令行 三层头部
// 实现 models.HeaderProvider,首次成功后结果被缓存
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	once   sync.Once
	merged http.Header
	err    error
}

// NewHeaderManager 创建头部管理器
// configFile 为空时使用 configs/headers.yaml
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli := make(http.Header)
	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		cli = parsed
	}

	return &HeaderManager{
		defaults:     defaultHeaders(),
		cli:          cli,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

func (hm *HeaderManager) load() error {
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}

	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		if err := hm.validator.Validate(layer); err != nil {
			utils.Errorf("HTTP头部验证失败: %v", err)
			return err
		}
	}

	hm.merged = hm.mergeLayers()
	utils.Debugf("HTTP头部: %s", hm.redactor.RedactToString(hm.merged))
	return nil
}

func (hm *HeaderManager) mergeLayers() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetHeaders 实现 HeaderProvider 接口,返回合并后头部的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() { hm.err = hm.load() })
	if hm.err != nil {
		return nil, hm.err
	}
	return hm.merged.Clone(), nil
}

// GetSafeHeaders 返回脱敏后的头部,用于日志和doctor输出
func (hm *HeaderManager) GetSafeHeaders() (map[string]string, error) {
	headers, err := hm.GetHeaders()
	if err != nil {
		return nil, err
	}
	return hm.redactor.Redact(headers), nil
}
