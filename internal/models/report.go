package models

import (
	"encoding/json"
	"time"
)

// SearchReport 写入 <name>.pages.json 的最终报告
type SearchReport struct {
	CSSSelector        string              `json:"cssSelector"`        // 使用的选择器(逗号连接)
	TotalPagesSearched int                 `json:"totalPagesSearched"` // 尝试搜索的页面数(含失败页)
	TotalMatches       int                 `json:"totalMatches"`       // 命中元素总数
	PagesWithSelector  []*PageSearchResult `json:"pagesWithSelector"`  // 有命中的页面
}

// NewSearchReport 由整站结果生成报告
func NewSearchReport(selectors []string, pagesSearched int, result *SiteSearchResult) *SearchReport {
	pages := result.Pages()
	if pages == nil {
		pages = []*PageSearchResult{}
	}
	return &SearchReport{
		CSSSelector:        JoinSelectors(selectors),
		TotalPagesSearched: pagesSearched,
		TotalMatches:       result.TotalMatches(),
		PagesWithSelector:  pages,
	}
}

// ToJSON 序列化为JSON
func (r *SearchReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *SearchReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// SearchSummary 运行摘要,用于控制台输出和批量统计
type SearchSummary struct {
	TaskID       string     `json:"task_id"`
	TargetURL    string     `json:"target_url"`
	Origin       string     `json:"origin"`
	Mode         RenderMode `json:"mode"`
	PagesFound   int        `json:"pages_found"`   // 发现的页面数
	PagesScanned int        `json:"pages_scanned"` // 搜索的页面数
	PagesFailed  int        `json:"pages_failed"`  // 获取失败的页面数
	PagesMatched int        `json:"pages_matched"` // 有命中的页面数
	TotalMatches int        `json:"total_matches"` // 命中元素总数
	OutputFile   string     `json:"output_file,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Duration     float64    `json:"duration"` // 秒
}

// ToJSON 序列化为JSON
func (s *SearchSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
