package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/matcher"
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Search    SearchConfig    `mapstructure:"search"`
	Output    OutputConfig    `mapstructure:"output"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	Logging   utils.LogConfig `mapstructure:"logging"`
	Headers   HeadersConfig   `mapstructure:"headers"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

// DiscoveryConfig URL发现配置
type DiscoveryConfig struct {
	LinkSelector  string `mapstructure:"link_selector"`  // 爬取时提取链接的选择器
	UseCache      bool   `mapstructure:"use_cache"`      // 复用已缓存的链接集合
	CacheDir      string `mapstructure:"cache_dir"`      // 缓存目录
	RespectRobots bool   `mapstructure:"respect_robots"` // 按robots规则过滤
	RobotsAgent   string `mapstructure:"robots_agent"`   // robots匹配的User-agent
}

// SearchConfig 选择器搜索配置
type SearchConfig struct {
	Selector      string  `mapstructure:"selector"`       // 逗号连接的选择器
	Mode          string  `mapstructure:"mode"`           // static 或 dynamic
	Screenshots   bool    `mapstructure:"screenshots"`    // 为命中元素截图
	ScreenshotDir string  `mapstructure:"screenshot_dir"` // 截图目录
	Limit         int     `mapstructure:"limit"`          // 最多搜索的页面数,0表示不限
	WaitTime      int     `mapstructure:"wait_time"`      // 动态页面加载后等待(秒)
	Timeout       int     `mapstructure:"timeout"`        // 请求/导航超时(秒)
	RateLimit     float64 `mapstructure:"rate_limit"`     // 每秒请求数,0表示不限
	Headless      bool    `mapstructure:"headless"`       // 无头浏览器
}

// OutputConfig 输出配置
type OutputConfig struct {
	FileName           string `mapstructure:"file_name"`
	Dir                string `mapstructure:"dir"`
	ShowElementDetails bool   `mapstructure:"show_element_details"`
	ShowHTML           bool   `mapstructure:"show_html"`
}

// ResourceConfig 动态模式资源门限
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"` // MB
	MemoryThreshold     int `mapstructure:"memory_threshold"`      // MB
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`    // 百分比,0表示不检查
	CheckInterval       int `mapstructure:"check_interval"`        // 秒
}

// HeadersConfig HTTP头部配置
type HeadersConfig struct {
	ConfigFile string `mapstructure:"config_file"`
}

// BatchConfig 批量模式配置
type BatchConfig struct {
	Delay           int  `mapstructure:"delay"`             // 站点之间延迟(秒)
	ContinueOnError bool `mapstructure:"continue_on_error"` // 单站点失败后继续
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".selectorhound"))
		}
	}

	v.SetEnvPrefix("SELECTORHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("discovery.link_selector", "a[href]")
	v.SetDefault("discovery.use_cache", true)
	v.SetDefault("discovery.cache_dir", ".")
	v.SetDefault("discovery.respect_robots", false)
	v.SetDefault("discovery.robots_agent", "*")

	v.SetDefault("search.selector", ".sources")
	v.SetDefault("search.mode", "static")
	v.SetDefault("search.screenshots", false)
	v.SetDefault("search.screenshot_dir", "screenshots")
	v.SetDefault("search.limit", 0)
	v.SetDefault("search.wait_time", 1)
	v.SetDefault("search.timeout", 30)
	v.SetDefault("search.rate_limit", 0)
	v.SetDefault("search.headless", true)

	v.SetDefault("output.file_name", utils.DefaultOutputFileName)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.show_element_details", true)
	v.SetDefault("output.show_html", true)

	v.SetDefault("resource.safety_reserve_memory", 512)
	v.SetDefault("resource.memory_threshold", 1024)
	v.SetDefault("resource.cpu_load_threshold", 0)
	v.SetDefault("resource.check_interval", 5)

	logDefaults := utils.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.dir", logDefaults.LogDir)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
	v.SetDefault("logging.compress", logDefaults.Compress)

	v.SetDefault("headers.config_file", "configs/headers.yaml")

	v.SetDefault("batch.delay", 0)
	v.SetDefault("batch.continue_on_error", true)
}

// ToSearchConfig 由配置生成单站点搜索配置
// targetURL 为sitemap地址或爬取起始页, crawl 决定发现方式
func (c *Config) ToSearchConfig(targetURL string, crawl bool) (models.SearchConfig, error) {
	mode, err := models.ParseRenderMode(c.Search.Mode)
	if err != nil {
		return models.SearchConfig{}, err
	}

	agent := c.Discovery.RobotsAgent
	if agent == "" {
		agent = "*"
	}

	return models.SearchConfig{
		URL:                targetURL,
		Crawl:              crawl,
		ForceRefresh:       !c.Discovery.UseCache,
		LinkSelector:       c.Discovery.LinkSelector,
		CacheDir:           c.Discovery.CacheDir,
		RespectRobots:      c.Discovery.RespectRobots,
		RobotsAgent:        agent,
		Limit:              c.Search.Limit,
		Selectors:          matcher.SplitSelectors(c.Search.Selector),
		Mode:               mode,
		CaptureScreenshots: c.Search.Screenshots,
		ScreenshotDir:      c.Search.ScreenshotDir,
		WaitTime:           c.Search.WaitTime,
		Timeout:            c.Search.Timeout,
		RateLimit:          c.Search.RateLimit,
		Headless:           c.Search.Headless,
		OutputFileName:     c.Output.FileName,
		OutputDir:          c.Output.Dir,
		ShowElementDetails: c.Output.ShowElementDetails,
		ShowHTML:           c.Output.ShowHTML,
	}, nil
}
