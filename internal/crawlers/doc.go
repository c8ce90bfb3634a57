// Package crawlers 提供站点页面发现和浏览器资源管理
//
// # 概述
//
// crawlers包负责回答"要搜索哪些页面",并为动态模式准备浏览器。
// 页面来源有两种: XML sitemap(可以是嵌套的sitemap索引)和从起始页出发的链接爬取。
// 发现结果是按站点源规范化、去重的LinkSet,并缓存为 <origin>.sitemap.json。
//
// # 核心组件
//
// ## Fetcher
//
// 基于Colly的同步请求器,sitemap、页面和robots.txt都通过它获取。
// 每次请求克隆collector,注入自定义HTTP头部,并处理gzip、deflate和brotli压缩。
//
//	fetcher := NewFetcher(FetcherOptions{Timeout: 30 * time.Second}, headerProvider)
//	doc, err := fetcher.Fetch(ctx, "https://example.com/sitemap.xml")
//
// ## SitemapResolver
//
// 递归解析sitemap索引,用已访问集合防止互相引用的sitemap导致死循环。
// 根文档失败时整个解析失败; 子sitemap失败只记录日志并跳过。
//
// ## Frontier
//
// 持有LinkSet,按配置选择sitemap解析或链接爬取。
// 链接爬取只走两跳: 起始页,以及起始页上每个站内链接。
//
//	frontier, err := NewFrontier(FrontierOptions{
//	    Origin:   "https://example.com",
//	    CacheDir: ".",
//	    UseCache: true,
//	}, fetcher, limiter, nil)
//	pages, err := frontier.Produce(ctx, "https://example.com/sitemap.xml", false)
//
// ## Browser 与 PagePool
//
// 一次搜索只启动一个浏览器; 每个页面打开一个新标签页,用完立即关闭。
// PagePool 在打开标签页前通过 ResourceMonitor 检查可用内存和CPU负载。
//
//	browser, err := LaunchBrowser(BrowserOptions{Headless: true})
//	defer browser.Close()
//
//	pool := NewPagePool(browser, monitor, headerProvider)
//	page, err := pool.Acquire(ctx)
//	defer pool.Release(page)
//
// # 并发
//
// 页面按顺序逐个处理。LinkSet、PagePool 和 ResourceMonitor 内部加锁,
// 但Frontier本身只应由一个goroutine使用。
package crawlers
