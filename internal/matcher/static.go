package matcher

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/RecoveryAshes/selectorhound/internal/crawlers"
	"github.com/RecoveryAshes/selectorhound/internal/models"
)

// StaticMatcher 获取原始HTML后直接解析查询,不执行页面脚本
type StaticMatcher struct {
	fetcher crawlers.DocumentFetcher
}

// NewStaticMatcher 创建静态匹配器
func NewStaticMatcher(fetcher crawlers.DocumentFetcher) *StaticMatcher {
	return &StaticMatcher{fetcher: fetcher}
}

// Match 获取页面并求值选择器
func (m *StaticMatcher) Match(ctx context.Context, pageURL string, selectors []string) (*models.PageSearchResult, error) {
	doc, err := m.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return MatchDocument(pageURL, doc.Body, selectors)
}

// MatchDocument 对已获取的HTML求值选择器
// 每个选择器单独编译和查询,无效选择器记入SelectorErrors
func MatchDocument(pageURL string, body []byte, selectors []string) (*models.PageSearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewParseError("html", pageURL, err)
	}

	acc := newAccumulator(pageURL)
	for _, sel := range selectors {
		compiled, err := cascadia.Compile(sel)
		if err != nil {
			acc.fail(sel, err)
			continue
		}
		acc.record(sel, collectMatches(doc.FindMatcher(compiled), sel))
	}
	return acc.result(), nil
}

// collectMatches 按文档顺序把命中节点转换为ElementMatch
func collectMatches(selection *goquery.Selection, selector string) []models.ElementMatch {
	matches := make([]models.ElementMatch, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		outer, _ := goquery.OuterHtml(s)
		matches = append(matches, models.ElementMatch{
			Tag:        node.Data,
			Attributes: attributeMap(node),
			InnerText:  strings.TrimSpace(s.Text()),
			Selector:   selector,
			HTML:       outer,
		})
	})
	return matches
}

// attributeMap 没有属性时返回nil
func attributeMap(node *html.Node) map[string]string {
	if len(node.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(node.Attr))
	for _, attr := range node.Attr {
		name := attr.Key
		if attr.Namespace != "" {
			name = attr.Namespace + ":" + attr.Key
		}
		attrs[name] = attr.Val
	}
	return attrs
}
