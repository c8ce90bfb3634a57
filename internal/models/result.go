package models

import "encoding/json"

// ElementMatch 选择器命中的单个元素
type ElementMatch struct {
	Tag        string            `json:"tag"`                  // 标签名(小写)
	Attributes map[string]string `json:"attributes,omitempty"` // 属性,无属性时为nil而不是空map
	InnerText  string            `json:"innerText"`            // 元素文本
	Selector   string            `json:"selector"`             // 命中该元素的选择器
	HTML       string            `json:"html,omitempty"`       // 元素outerHTML
}

// PageSearchResult 单个页面的搜索结果
// 只有在至少一个选择器命中时才会创建
type PageSearchResult struct {
	URL             string          `json:"url"`
	Elements        []ElementMatch  `json:"elements"`
	UsedSelectors   []string        `json:"usedSelectors"`
	UnusedSelectors []string        `json:"unusedSelectors,omitempty"`
	SelectorErrors  []SelectorError `json:"selectorErrors,omitempty"`
}

// TotalMatches 页面命中元素数
func (p *PageSearchResult) TotalMatches() int {
	return len(p.Elements)
}

// SiteSearchResult 整站搜索结果,按页面处理顺序排列
// 没有命中的页面不会出现在这里
type SiteSearchResult struct {
	pages []*PageSearchResult
}

// NewSiteSearchResult 创建空的整站结果
func NewSiteSearchResult() *SiteSearchResult {
	return &SiteSearchResult{pages: make([]*PageSearchResult, 0)}
}

// Push 追加一个页面结果
func (s *SiteSearchResult) Push(page *PageSearchResult) {
	if page == nil {
		return
	}
	s.pages = append(s.pages, page)
}

// Pages 返回全部页面结果
func (s *SiteSearchResult) Pages() []*PageSearchResult {
	return s.pages
}

// Len 页面结果数
func (s *SiteSearchResult) Len() int {
	return len(s.pages)
}

// TotalMatches 所有页面命中数之和,每次调用重新计算
func (s *SiteSearchResult) TotalMatches() int {
	total := 0
	for _, p := range s.pages {
		total += p.TotalMatches()
	}
	return total
}

// MarshalJSON 序列化为页面数组
func (s *SiteSearchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.pages)
}

// UnmarshalJSON 从页面数组反序列化
func (s *SiteSearchResult) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.pages)
}
