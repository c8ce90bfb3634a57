package crawlers

import (
	"net/url"
	"strings"
	"sync"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

// LinkSet 按站点源规范化的去重URL集合
// 成员都是绝对地址,保持首次加入的顺序
type LinkSet struct {
	base *url.URL

	mu    sync.RWMutex
	items []string
	index map[string]struct{}
}

// NewLinkSet 创建链接集合, origin 用于把相对路径补全为绝对地址
func NewLinkSet(origin string) *LinkSet {
	base, err := url.Parse(strings.TrimRight(origin, "/") + "/")
	if err != nil {
		base = nil
	}
	return &LinkSet{
		base:  base,
		index: make(map[string]struct{}),
	}
}

// normalize 解析为绝对http(s)地址并规范化
// 去掉片段和默认端口, 主机名转小写, 空路径补为 /
func (s *LinkSet) normalize(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if s.base == nil {
			return "", false
		}
		u = s.base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return u.String(), true
}

// Add 加入一个引用,新成员返回true
func (s *LinkSet) Add(ref string) bool {
	link, ok := s.normalize(ref)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[link]; exists {
		return false
	}
	s.index[link] = struct{}{}
	s.items = append(s.items, link)
	return true
}

// AddLinks 批量加入,返回新增数量
func (s *LinkSet) AddLinks(refs ...string) int {
	added := 0
	for _, ref := range refs {
		if s.Add(ref) {
			added++
		}
	}
	return added
}

// AddEntries 加入sitemap缓存中的 {loc} 记录
func (s *LinkSet) AddEntries(entries []models.SitemapEntry) int {
	added := 0
	for _, entry := range entries {
		if s.Add(entry.Loc) {
			added++
		}
	}
	return added
}

// Contains 引用规范化后是否已在集合中
func (s *LinkSet) Contains(ref string) bool {
	link, ok := s.normalize(ref)
	if !ok {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.index[link]
	return exists
}

// List 按加入顺序返回所有成员
func (s *LinkSet) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.items...)
}

// Len 成员数量
func (s *LinkSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Entries 以 {loc} 记录形式返回,用于写缓存
func (s *LinkSet) Entries() []models.SitemapEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.SitemapEntry, 0, len(s.items))
	for _, link := range s.items {
		entries = append(entries, models.SitemapEntry{Loc: link})
	}
	return entries
}

// Reset 清空集合
func (s *LinkSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]struct{})
}
