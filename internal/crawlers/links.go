package crawlers

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/andybalholm/cascadia"
)

// DefaultLinkSelector 默认链接选择器
const DefaultLinkSelector = "a[href]"

// LinkExtractor 按选择器从HTML中提取href
type LinkExtractor struct {
	selector string
	matcher  cascadia.Selector
}

// NewLinkExtractor 编译链接选择器,空字符串使用 a[href]
func NewLinkExtractor(linkSelector string) (*LinkExtractor, error) {
	linkSelector = strings.TrimSpace(linkSelector)
	if linkSelector == "" {
		linkSelector = DefaultLinkSelector
	}

	compiled, err := cascadia.Compile(linkSelector)
	if err != nil {
		return nil, models.NewInvalidInputError("link_selector", linkSelector, err)
	}

	return &LinkExtractor{selector: linkSelector, matcher: compiled}, nil
}

// Selector 使用中的链接选择器
func (e *LinkExtractor) Selector() string {
	return e.selector
}

// Extract 返回匹配元素的原始href,按文档顺序,未做过滤
func (e *LinkExtractor) Extract(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	var hrefs []string
	doc.FindMatcher(e.matcher).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

// ShouldFollowLink 判断href是否属于站点
// 保留同源绝对地址、以 / 开头的根相对路径和同主机的协议相对地址
func ShouldFollowLink(origin *url.URL, href string) (bool, string) {
	href = strings.TrimSpace(href)

	switch {
	case href == "":
		return false, "空链接"
	case strings.HasPrefix(href, "#"):
		return false, "页内锚点"
	case strings.HasPrefix(href, "//"):
		u, err := url.Parse(origin.Scheme + ":" + href)
		if err != nil || hostKey(u) != hostKey(origin) {
			return false, "跨域链接"
		}
		return true, ""
	case strings.HasPrefix(href, "/"):
		return true, ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return false, "URL格式无效"
	}
	if !u.IsAbs() {
		return false, "非根相对路径"
	}
	if u.Scheme != origin.Scheme || hostKey(u) != hostKey(origin) {
		return false, "跨域链接"
	}
	return true, ""
}

// hostKey 小写主机名加端口, 未写端口时按协议补默认端口
func hostKey(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return strings.ToLower(u.Hostname()) + ":" + port
}

// FilterPageLinks 过滤出站点内链接并去重,保持顺序
func FilterPageLinks(origin string, hrefs []string) []string {
	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, href := range hrefs {
		ok, reason := ShouldFollowLink(base, href)
		if !ok {
			utils.Debugf("链接已过滤: %s (%s)", href, reason)
			continue
		}
		href = strings.TrimSpace(href)
		if seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, href)
	}
	return links
}
