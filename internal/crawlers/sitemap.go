package crawlers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/antchfx/xmlquery"
)

// DocumentFetcher 获取文档
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Pacer 请求节流, *rate.Limiter 满足该接口
type Pacer interface {
	Wait(ctx context.Context) error
}

// SitemapKind sitemap文档类型
type SitemapKind int

const (
	SitemapURLSet SitemapKind = iota // <urlset> 叶子
	SitemapIndex                     // <sitemapindex> 索引
)

func (k SitemapKind) String() string {
	if k == SitemapIndex {
		return "sitemapindex"
	}
	return "urlset"
}

// SitemapDocument 解析后的sitemap
// Kind 为 SitemapIndex 时 Locs 是嵌套sitemap的地址
type SitemapDocument struct {
	Kind SitemapKind
	Locs []string
}

// ParseSitemap 解析sitemap XML
// 根元素既不是 urlset 也不是 sitemapindex 时返回 ErrParse 类错误
func ParseSitemap(sitemapURL string, body []byte) (*SitemapDocument, error) {
	root, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewParseError("sitemap", sitemapURL, err)
	}

	if xmlquery.FindOne(root, "/sitemapindex") != nil {
		return &SitemapDocument{
			Kind: SitemapIndex,
			Locs: collectLocs(root, "/sitemapindex/sitemap/loc"),
		}, nil
	}
	if xmlquery.FindOne(root, "/urlset") != nil {
		return &SitemapDocument{
			Kind: SitemapURLSet,
			Locs: collectLocs(root, "/urlset/url/loc"),
		}, nil
	}

	return nil, models.NewParseError("sitemap", sitemapURL, fmt.Errorf("根元素不是urlset或sitemapindex"))
}

func collectLocs(root *xmlquery.Node, expr string) []string {
	var locs []string
	xmlquery.FindEach(root, expr, func(_ int, n *xmlquery.Node) {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	})
	return locs
}

// SitemapResolver 递归解析sitemap索引
type SitemapResolver struct {
	fetcher DocumentFetcher
	pacer   Pacer
	visited map[string]bool
}

// NewSitemapResolver 创建解析器, pacer 可以为nil
func NewSitemapResolver(fetcher DocumentFetcher, pacer Pacer) *SitemapResolver {
	return &SitemapResolver{
		fetcher: fetcher,
		pacer:   pacer,
	}
}

// Resolve 返回sitemap树中所有页面地址,去重并保持顺序
// 根文档失败时返回错误;嵌套sitemap失败只记录日志并跳过
func (r *SitemapResolver) Resolve(ctx context.Context, sitemapURL string) ([]string, error) {
	r.visited = make(map[string]bool)

	locs, err := r.resolve(ctx, sitemapURL, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(locs))
	unique := make([]string, 0, len(locs))
	for _, loc := range locs {
		if seen[loc] {
			continue
		}
		seen[loc] = true
		unique = append(unique, loc)
	}
	return unique, nil
}

// Visited 最近一次解析访问过的sitemap数量
func (r *SitemapResolver) Visited() int {
	return len(r.visited)
}

func (r *SitemapResolver) resolve(ctx context.Context, sitemapURL string, root bool) ([]string, error) {
	if r.visited[sitemapURL] {
		utils.Debugf("sitemap已解析过,跳过: %s", sitemapURL)
		return nil, nil
	}
	r.visited[sitemapURL] = true

	if r.pacer != nil {
		if err := r.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	doc, err := r.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	sitemap, err := ParseSitemap(sitemapURL, doc.Body)
	if err != nil {
		return nil, err
	}

	if sitemap.Kind == SitemapURLSet {
		utils.Debugf("sitemap %s: %d 个页面", sitemapURL, len(sitemap.Locs))
		return sitemap.Locs, nil
	}

	utils.Infof("🗺️  sitemap索引 %s: %d 个子sitemap", sitemapURL, len(sitemap.Locs))

	var locs []string
	for _, child := range sitemap.Locs {
		childURL := resolveAgainst(doc.FinalURL, child)
		childLocs, err := r.resolve(ctx, childURL, false)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			utils.Warnf("解析子sitemap失败,已跳过 [%s]: %v", childURL, err)
			continue
		}
		locs = append(locs, childLocs...)
	}

	if root && len(sitemap.Locs) > 0 && len(locs) == 0 {
		utils.Warnf("sitemap索引 %s 没有解析出任何页面", sitemapURL)
	}
	return locs, nil
}

// resolveAgainst 把相对地址解析为相对base的绝对地址
func resolveAgainst(base, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}
