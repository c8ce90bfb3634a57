package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/selectorhound/internal/crawlers"
	"github.com/RecoveryAshes/selectorhound/internal/matcher"
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/robots"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// FinderOptions 单站点搜索的运行参数
type FinderOptions struct {
	Resource      crawlers.ResourceMonitorConfig // 动态模式打开标签页前的资源门限
	CheckInterval time.Duration                  // 资源后台采样间隔
	Quiet         bool                           // 不显示进度条和旋转指示器
}

// Finder 单站点搜索协调器
// 执行流程: URL发现 → robots过滤(可选) → 页面数限制 → 逐页匹配 → 写入报告
type Finder struct {
	config         models.SearchConfig
	opts           FinderOptions
	task           *models.SearchTask
	headerProvider models.HeaderProvider

	fetcher *crawlers.Fetcher
	limiter *rate.Limiter
}

// NewFinder 创建搜索协调器
func NewFinder(config models.SearchConfig, headerProvider models.HeaderProvider, opts FinderOptions) (*Finder, error) {
	config.Selectors = matcher.NormalizeSelectors(config.Selectors)

	task, err := models.NewSearchTask(config)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Finder{
		config:         config,
		opts:           opts,
		task:           task,
		headerProvider: headerProvider,
		fetcher: crawlers.NewFetcher(crawlers.FetcherOptions{
			Timeout:     time.Duration(config.Timeout) * time.Second,
			MaxBodySize: crawlers.DefaultMaxBodySize,
		}, headerProvider),
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Task 当前任务
func (f *Finder) Task() *models.SearchTask {
	return f.task
}

// Run 执行单站点搜索
// 只有发现阶段失败(sitemap根不可用、起始页不可用)和报告写入失败会返回error;
// 单个页面或选择器的失败只记录日志
// ctx取消时停止搜索,已得到的结果仍会写入报告
func (f *Finder) Run(ctx context.Context) (*models.SiteSearchResult, *models.SearchSummary, error) {
	f.task.Start()
	summary := &models.SearchSummary{
		TaskID:    f.task.ID,
		TargetURL: f.task.TargetURL,
		Origin:    f.task.Origin,
		Mode:      f.config.Mode,
		StartTime: time.Now(),
	}
	result := models.NewSiteSearchResult()

	utils.Infof("🚀 开始搜索任务 %s", f.task.ID)
	utils.Infof("目标URL: %s", f.task.TargetURL)
	utils.Infof("选择器: %s", models.JoinSelectors(f.config.Selectors))
	utils.Infof("获取模式: %s", f.config.Mode)

	pages, err := f.discover(ctx)
	if err != nil {
		err = fmt.Errorf("URL发现失败: %w", err)
		f.finish(summary, err)
		return result, summary, err
	}
	summary.PagesFound = len(pages)

	if f.config.Limit > 0 && len(pages) > f.config.Limit {
		utils.Infof("页面数限制: 只搜索前 %d 个页面 (共发现 %d 个)", f.config.Limit, len(pages))
		pages = pages[:f.config.Limit]
	}

	m, cleanup, err := f.newMatcher()
	if err != nil {
		f.finish(summary, err)
		return result, summary, err
	}
	searchErr := f.search(ctx, m, pages, result, summary)
	summary.PagesMatched = result.Len()
	summary.TotalMatches = result.TotalMatches()
	if err := cleanup(); err != nil {
		utils.Warnf("释放浏览器资源失败: %v", err)
	}

	report := models.NewSearchReport(f.config.Selectors, summary.PagesScanned, result)
	outputter := utils.NewOutputter(utils.OutputOptions{
		FileName:           f.config.OutputFileName,
		Dir:                f.config.OutputDir,
		ShowElementDetails: f.config.ShowElementDetails,
		ShowHTML:           f.config.ShowHTML,
	})
	path, err := outputter.Write(report)
	if err != nil {
		err = fmt.Errorf("写入结果失败: %w", err)
		f.finish(summary, err)
		return result, summary, err
	}
	summary.OutputFile = path

	f.finish(summary, searchErr)
	return result, summary, searchErr
}

// discover 产生待搜索的页面列表
func (f *Finder) discover(ctx context.Context) ([]string, error) {
	if !f.opts.Quiet {
		s := utils.NewSpinner("正在发现页面...")
		s.Start()
		defer s.Stop()
	}

	frontier, err := crawlers.NewFrontier(crawlers.FrontierOptions{
		Origin:       f.task.Origin,
		LinkSelector: f.config.LinkSelector,
		CacheDir:     f.config.CacheDir,
		UseCache:     !f.config.ForceRefresh,
	}, f.fetcher, f.limiter, f.robotsFilter(ctx))
	if err != nil {
		return nil, err
	}

	pages, err := frontier.Produce(ctx, f.config.URL, f.config.Crawl)
	if err != nil {
		return nil, err
	}

	source := "网络"
	if frontier.FromCache() {
		source = "缓存"
	}
	utils.Infof("🔍 发现 %d 个页面 (来源: %s)", len(pages), source)
	return pages, nil
}

// robotsFilter 获取robots规则并生成链接过滤器,规则不可用时不过滤
func (f *Finder) robotsFilter(ctx context.Context) crawlers.LinkFilter {
	if !f.config.RespectRobots {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}

	engine := robots.NewEngine(f.fetcher)
	rules, err := engine.FetchRules(ctx, f.config.URL)
	if err != nil {
		utils.Warnf("robots规则不可用,不过滤链接: %v", err)
		return nil
	}
	if path, err := engine.Export(f.config.CacheDir); err != nil {
		utils.Warnf("导出robots规则失败: %v", err)
	} else {
		utils.Debugf("robots规则已保存: %s", path)
	}

	agent := f.config.RobotsAgent
	return func(link string) bool {
		if rules.Allowed(link, agent) {
			return true
		}
		utils.Debugf("robots规则禁止: %s", link)
		return false
	}
}

// newMatcher 按模式创建匹配器,返回的cleanup负责关闭浏览器
func (f *Finder) newMatcher() (matcher.Matcher, func() error, error) {
	noop := func() error { return nil }

	if f.config.Mode != models.ModeDynamic {
		m, err := matcher.New(models.ModeStatic, matcher.Dependencies{Fetcher: f.fetcher})
		return m, noop, err
	}

	browser, err := crawlers.LaunchBrowser(crawlers.BrowserOptions{Headless: f.config.Headless})
	if err != nil {
		return nil, noop, fmt.Errorf("启动浏览器失败: %w", err)
	}

	monitor := crawlers.NewResourceMonitor(f.opts.Resource)
	if f.opts.CheckInterval > 0 {
		monitor.StartMonitoring(f.opts.CheckInterval)
	}
	pool := crawlers.NewPagePool(browser, monitor, f.headerProvider)

	m, err := matcher.New(models.ModeDynamic, matcher.Dependencies{
		Pages: pool,
		Dynamic: matcher.DynamicOptions{
			WaitTime:        time.Duration(f.config.WaitTime) * time.Second,
			NavigateTimeout: time.Duration(f.config.Timeout) * time.Second,
			Screenshots:     f.config.CaptureScreenshots,
			ScreenshotDir:   f.config.ScreenshotDir,
		},
	})

	cleanup := func() error {
		monitor.StopMonitoring()
		poolErr := pool.Close()
		utils.Debugf("本次共打开 %d 个标签页", pool.Opened())
		if err := browser.Close(); err != nil {
			return err
		}
		return poolErr
	}
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return m, cleanup, nil
}

// search 逐页匹配,页面之间串行
func (f *Finder) search(ctx context.Context, m matcher.Matcher, pages []string, result *models.SiteSearchResult, summary *models.SearchSummary) error {
	var bar interface{ Add(int) error }
	if !f.opts.Quiet && len(pages) > 0 {
		pb := utils.NewProgressBar(len(pages), "搜索页面")
		defer pb.Finish()
		bar = pb
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			utils.Warnf("搜索已取消, 剩余 %d 个页面未搜索", len(pages)-summary.PagesScanned)
			return err
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		summary.PagesScanned++
		pageResult, err := m.Match(ctx, page, f.config.Selectors)
		switch {
		case err != nil:
			summary.PagesFailed++
			utils.Warnf("页面搜索失败 [%s]: %v", page, err)
		case pageResult != nil:
			result.Push(pageResult)
			utils.Debugf("命中 %d 个元素: %s", pageResult.TotalMatches(), page)
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	return nil
}

// finish 结束任务并输出摘要
func (f *Finder) finish(summary *models.SearchSummary, err error) {
	f.task.Finish(err)
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime).Seconds()
	if err != nil {
		utils.Error(err, "搜索任务失败")
	}
	PrintSummary(summary)
}

// PrintSummary 输出运行摘要,失败的任务同样输出
func PrintSummary(summary *models.SearchSummary) {
	utils.Info("==================================================")
	utils.Infof("📊 搜索了 %d 个页面", summary.PagesScanned)
	utils.Infof("✅ 有 %d 个页面包含选择器", summary.PagesMatched)
	utils.Infof("🎯 共 %d 个结果", summary.TotalMatches)
	if summary.PagesFailed > 0 {
		utils.Infof("❌ %d 个页面获取失败,详见日志", summary.PagesFailed)
	}
	if summary.OutputFile != "" {
		utils.Infof("💾 结果已保存: %s", summary.OutputFile)
	}
	utils.Infof("⏱️  总耗时: %.2f秒", summary.Duration)
	utils.Info("==================================================")
}
