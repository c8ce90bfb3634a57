package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/core"
	"github.com/RecoveryAshes/selectorhound/internal/crawlers"
	"github.com/RecoveryAshes/selectorhound/internal/matcher"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 发现参数
	targetURL     string
	urlFile       string
	crawl         bool
	refresh       bool
	respectRobots bool
	linkSelector  string

	// 搜索参数
	selector           string
	cssFile            string
	limit              int
	dynamic            bool
	screenshots        bool
	waitTime           int
	timeout            int
	rateLimit          float64
	headless           bool
	outputName         string
	showElementDetails bool
	showHTML           bool

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// appConfig 由 PersistentPreRunE 加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "selectorhound",
	Short: "按CSS选择器搜索整站页面",
	Long: `selectorhound - 通过sitemap或链接爬取发现站点页面,并在每个页面上查找CSS选择器

支持:
  • sitemap / sitemap索引递归解析,或从起始页爬取两跳内的站内链接
  • 链接集合缓存 (<站点>.sitemap.json)
  • robots.txt 规则过滤 (--respect-robots)
  • static (直接解析HTML) 和 dynamic (浏览器渲染) 两种模式
  • 命中元素截图
  • 自定义HTTP请求头、批量URL处理

示例:
  # 在sitemap列出的页面中查找 .sources
  selectorhound -u https://example.com/sitemap.xml -s ".sources"

  # 从首页爬取链接,浏览器渲染后查找,并截图
  selectorhound -u https://example.com/ -r -d -c -s "h1, .banner"

  # 从CSS文件读取选择器,只搜索前20个页面
  selectorhound -u https://example.com/sitemap.xml -f styles.css -l 20

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		logConfig := config.Logging
		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Ctrl+C 取消搜索, 已得到的结果仍会写入
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headerManager, err := core.NewHeaderManager(appConfig.Headers.ConfigFile, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printHeaders(headerManager)
	}

	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	applyFlags(cmd, appConfig)

	selectors, err := resolveSelectors(appConfig.Search.Selector, cssFile)
	if err != nil {
		return err
	}

	if targetURL != "" {
		if targetURL, err = NormalizeURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}
	if err := ValidateFlags(SearchFlags{
		URL:       targetURL,
		URLFile:   urlFile,
		Selectors: selectors,
		Limit:     appConfig.Search.Limit,
		WaitTime:  appConfig.Search.WaitTime,
		Timeout:   appConfig.Search.Timeout,
		RateLimit: appConfig.Search.RateLimit,
	}); err != nil {
		return err
	}

	searchConfig, err := appConfig.ToSearchConfig(targetURL, crawl)
	if err != nil {
		return err
	}
	searchConfig.Selectors = selectors

	opts := core.FinderOptions{
		Resource: crawlers.ResourceMonitorConfig{
			SafetyReserveMemory: int64(appConfig.Resource.SafetyReserveMemory) * 1024 * 1024,
			MemoryThreshold:     int64(appConfig.Resource.MemoryThreshold) * 1024 * 1024,
			CPULoadThreshold:    appConfig.Resource.CPULoadThreshold,
		},
		CheckInterval: time.Duration(appConfig.Resource.CheckInterval) * time.Second,
	}

	if urlFile != "" {
		urls, err := utils.ReadURLsFromFile(urlFile)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}

		batch := core.NewBatchFinder(searchConfig, opts, appConfig.Batch.Delay, appConfig.Batch.ContinueOnError, headerManager)
		if _, err := batch.Run(ctx, urls); err != nil {
			return fmt.Errorf("批量搜索中断: %w", err)
		}
		utils.Info("✨ 批量搜索任务完成!")
		return nil
	}

	finder, err := core.NewFinder(searchConfig, headerManager, opts)
	if err != nil {
		return err
	}
	if _, _, err := finder.Run(ctx); err != nil {
		return err
	}

	utils.Info("✨ 搜索任务完成!")
	return nil
}

// applyFlags 显式指定的命令行参数覆盖配置文件
func applyFlags(cmd *cobra.Command, config *core.Config) {
	flags := cmd.Flags()
	if flags.Changed("refresh") {
		config.Discovery.UseCache = !refresh
	}
	if flags.Changed("respect-robots") {
		config.Discovery.RespectRobots = respectRobots
	}
	if flags.Changed("link-selector") {
		config.Discovery.LinkSelector = linkSelector
	}
	if flags.Changed("selector") {
		config.Search.Selector = selector
	} else if flags.Changed("css-file") {
		// 只给出CSS文件时不再使用默认选择器
		config.Search.Selector = ""
	}
	if flags.Changed("limit") {
		config.Search.Limit = limit
	}
	if flags.Changed("dynamic") {
		config.Search.Mode = "static"
		if dynamic {
			config.Search.Mode = "dynamic"
		}
	}
	if flags.Changed("screenshots") {
		config.Search.Screenshots = screenshots
	}
	if flags.Changed("wait") {
		config.Search.WaitTime = waitTime
	}
	if flags.Changed("timeout") {
		config.Search.Timeout = timeout
	}
	if flags.Changed("rate") {
		config.Search.RateLimit = rateLimit
	}
	if flags.Changed("headless") {
		config.Search.Headless = headless
	}
	if flags.Changed("output") {
		config.Output.FileName = outputName
	}
	if flags.Changed("show-element-details") {
		config.Output.ShowElementDetails = showElementDetails
	}
	if flags.Changed("show-html") {
		config.Output.ShowHTML = showHTML
	}
	if flags.Changed("batch-delay") {
		config.Batch.Delay = batchDelay
	}
	if flags.Changed("continue-on-error") {
		config.Batch.ContinueOnError = continueOnError
	}
}

// resolveSelectors 合并 --selector 与 --css-file 中的选择器
func resolveSelectors(selectorText, cssPath string) ([]string, error) {
	items := []string{selectorText}
	if cssPath != "" {
		fromCSS, err := utils.ReadSelectorsFromCSS(cssPath)
		if err != nil {
			return nil, fmt.Errorf("读取CSS文件失败: %w", err)
		}
		utils.Infof("从CSS文件读取了 %d 个选择器: %s", len(fromCSS), cssPath)
		items = append(items, fromCSS...)
	}
	return matcher.NormalizeSelectors(items), nil
}

// printHeaders 验证并显示合并后的HTTP头部(脱敏)
func printHeaders(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	safeHeaders, err := headerManager.GetSafeHeaders()
	if err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("selectorhound %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置并显示生效的头部")

	// 发现参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "sitemap地址或爬取起始页 (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVar(&urlFile, "url-file", "", "包含URL列表的文件路径(批量模式)")
	rootCmd.Flags().BoolVarP(&crawl, "crawl", "r", false, "从起始页爬取链接而不是解析sitemap")
	rootCmd.Flags().BoolVar(&refresh, "refresh", false, "忽略已缓存的链接集合,重新发现")
	rootCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "按robots.txt规则过滤页面")
	rootCmd.Flags().StringVar(&linkSelector, "link-selector", "a[href]", "爬取时提取链接的选择器")

	// 搜索参数
	rootCmd.Flags().StringVarP(&selector, "selector", "s", ".sources", "CSS选择器,多个用逗号分隔")
	rootCmd.Flags().StringVarP(&cssFile, "css-file", "f", "", "从CSS文件读取选择器")
	rootCmd.Flags().IntVarP(&limit, "limit", "l", 0, "最多搜索的页面数 (0表示不限)")
	rootCmd.Flags().BoolVarP(&dynamic, "dynamic", "d", false, "使用浏览器渲染页面 (适用于SPA)")
	rootCmd.Flags().BoolVarP(&screenshots, "screenshots", "c", false, "为命中元素截图 (仅dynamic)")
	rootCmd.Flags().IntVarP(&waitTime, "wait", "w", 1, "页面加载后等待时间(秒,仅dynamic)")
	rootCmd.Flags().IntVar(&timeout, "timeout", 30, "请求/导航超时(秒)")
	rootCmd.Flags().Float64Var(&rateLimit, "rate", 0, "每秒最多请求数 (0表示不限)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVarP(&outputName, "output", "o", utils.DefaultOutputFileName, "输出文件名 (非pages.json时写为<名称>.pages.json)")
	rootCmd.Flags().BoolVarP(&showElementDetails, "show-element-details", "e", true, "输出完整元素信息")
	rootCmd.Flags().BoolVarP(&showHTML, "show-html", "m", true, "输出元素HTML")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 0, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
