package crawlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// LinkFilter 返回false的链接不会交给匹配器
type LinkFilter func(link string) bool

// FrontierOptions URL发现配置
type FrontierOptions struct {
	Origin       string // 站点源, 用于补全相对路径和命名缓存文件
	LinkSelector string // 爬取模式的链接选择器
	CacheDir     string // <origin>.sitemap.json 所在目录
	UseCache     bool   // 缓存存在时直接复用
}

// Frontier 站点页面发现
// 独占一个LinkSet, 只通过AddLinks修改
type Frontier struct {
	opts      FrontierOptions
	fetcher   DocumentFetcher
	pacer     Pacer
	filter    LinkFilter
	extractor *LinkExtractor
	links     *LinkSet
	fromCache bool
}

// NewFrontier 创建发现器, pacer 和 filter 可以为nil
func NewFrontier(opts FrontierOptions, fetcher DocumentFetcher, pacer Pacer, filter LinkFilter) (*Frontier, error) {
	if opts.Origin == "" {
		return nil, models.NewInvalidInputError("frontier", opts.Origin, fmt.Errorf("站点源不能为空"))
	}
	opts.Origin = strings.TrimRight(opts.Origin, "/")

	extractor, err := NewLinkExtractor(opts.LinkSelector)
	if err != nil {
		return nil, err
	}

	return &Frontier{
		opts:      opts,
		fetcher:   fetcher,
		pacer:     pacer,
		filter:    filter,
		extractor: extractor,
		links:     NewLinkSet(opts.Origin),
	}, nil
}

// Links 当前链接集合
func (f *Frontier) Links() *LinkSet {
	return f.links
}

// FromCache 最近一次Produce是否使用了缓存
func (f *Frontier) FromCache() bool {
	return f.fromCache
}

// AddLinks 合并一批引用, 相对路径按站点源补全
func (f *Frontier) AddLinks(refs ...string) int {
	return f.links.AddLinks(refs...)
}

// ResolveSitemap 递归解析sitemap并把所有页面加入集合
func (f *Frontier) ResolveSitemap(ctx context.Context, sitemapURL string) (*LinkSet, error) {
	locs, err := NewSitemapResolver(f.fetcher, f.pacer).Resolve(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("解析sitemap失败: %w", err)
	}
	added := f.AddLinks(locs...)
	utils.Infof("🗺️  sitemap解析完成: %d 个页面", added)
	return f.links, nil
}

// CrawlFromPage 从起始页爬取两跳以内的站内链接
// 起始页失败返回错误; 第二跳的页面失败只记录日志
func (f *Frontier) CrawlFromPage(ctx context.Context, startURL string) (*LinkSet, error) {
	hrefs, err := f.pageLinks(ctx, startURL)
	if err != nil {
		return nil, fmt.Errorf("获取起始页失败: %w", err)
	}
	f.AddLinks(FilterPageLinks(f.opts.Origin, hrefs)...)
	firstHop := f.links.List()
	utils.Infof("🔗 起始页发现 %d 个站内链接", len(firstHop))

	start, _ := f.links.normalize(startURL)
	for i, link := range firstHop {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if link == start {
			continue
		}
		if f.filter != nil && !f.filter(link) {
			utils.Debugf("robots规则禁止,跳过爬取: %s", link)
			continue
		}

		hrefs, err := f.pageLinks(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			utils.Warnf("爬取页面失败,已跳过 [%d/%d] %s: %v", i+1, len(firstHop), link, err)
			continue
		}
		f.AddLinks(FilterPageLinks(f.opts.Origin, hrefs)...)
	}

	utils.Infof("🔗 链接爬取完成: %d 个页面", f.links.Len())
	return f.links, nil
}

// pageLinks 获取页面并返回原始href, 非HTML内容没有链接
func (f *Frontier) pageLinks(ctx context.Context, pageURL string) ([]string, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	doc, err := f.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if doc.ContentType != "" && !strings.Contains(strings.ToLower(doc.ContentType), "html") {
		utils.Debugf("非HTML内容,不提取链接: %s (%s)", pageURL, doc.ContentType)
		return nil, nil
	}
	return f.extractor.Extract(doc.Body)
}

// Produce 返回待搜索的页面列表
// UseCache 且缓存存在时直接读取, 否则按crawl选择爬取或sitemap解析并写缓存
func (f *Frontier) Produce(ctx context.Context, target string, crawl bool) ([]string, error) {
	f.fromCache = false

	if f.opts.UseCache {
		loaded, err := f.Load()
		if err != nil {
			utils.Warnf("读取链接缓存失败,重新发现: %v", err)
		} else if loaded {
			f.fromCache = true
			utils.Infof("📂 使用缓存的链接集合: %s (%d 个页面)", f.CachePath(), f.links.Len())
		}
	}

	if !f.fromCache {
		f.links.Reset()
		var err error
		if crawl {
			_, err = f.CrawlFromPage(ctx, target)
		} else {
			_, err = f.ResolveSitemap(ctx, target)
		}
		if err != nil {
			return nil, err
		}
		if _, err := f.Export(); err != nil {
			utils.Warnf("写入链接缓存失败: %v", err)
		}
	}

	return f.apply(f.links.List()), nil
}

func (f *Frontier) apply(links []string) []string {
	if f.filter == nil {
		return links
	}
	kept := make([]string, 0, len(links))
	for _, link := range links {
		if f.filter(link) {
			kept = append(kept, link)
		} else {
			utils.Debugf("robots规则禁止: %s", link)
		}
	}
	if dropped := len(links) - len(kept); dropped > 0 {
		utils.Infof("🤖 robots规则过滤 %d 个页面", dropped)
	}
	return kept
}

// CachePath 链接缓存文件路径
func (f *Frontier) CachePath() string {
	return filepath.Join(f.opts.CacheDir, models.SitemapFilename(f.opts.Origin))
}

// Load 从缓存加载链接, 文件不存在或为空返回false
func (f *Frontier) Load() (bool, error) {
	path := f.CachePath()
	if !utils.FileExists(path) {
		return false, nil
	}

	var entries []models.SitemapEntry
	if err := utils.ReadJSONFile(path, &entries); err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	f.links.Reset()
	f.links.AddEntries(entries)
	return true, nil
}

// Export 把集合写为 {loc} 数组
func (f *Frontier) Export() (string, error) {
	path := f.CachePath()
	if err := utils.WriteJSONFile(path, f.links.Entries()); err != nil {
		return "", err
	}
	utils.Debugf("链接集合已缓存: %s", path)
	return path, nil
}
