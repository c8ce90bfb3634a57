package utils

import (
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
)

// DefaultOutputFileName 默认输出文件名,原样使用不再追加后缀
const DefaultOutputFileName = "pages.json"

// OutputOptions 输出格式选项
type OutputOptions struct {
	FileName           string // 输出文件名,非 pages.json 时写为 <FileName>.pages.json
	Dir                string // 输出目录
	ShowElementDetails bool   // false 时每个元素只保留 selector 和 html
	ShowHTML           bool   // false 时去掉元素的 html
}

// OutputFilePath 计算输出文件路径
func OutputFilePath(opts OutputOptions) string {
	name := strings.TrimSpace(opts.FileName)
	switch {
	case name == "":
		name = DefaultOutputFileName
	case name != DefaultOutputFileName && !strings.HasSuffix(name, ".pages.json"):
		name += ".pages.json"
	}
	return filepath.Join(opts.Dir, name)
}

// outputReport 写入文件的报告视图
type outputReport struct {
	CSSSelector        string       `json:"cssSelector"`
	TotalPagesSearched int          `json:"totalPagesSearched"`
	TotalMatches       int          `json:"totalMatches"`
	PagesWithSelector  []outputPage `json:"pagesWithSelector"`
}

type outputPage struct {
	URL             string                 `json:"url"`
	Elements        []interface{}          `json:"elements"`
	UsedSelectors   []string               `json:"usedSelectors"`
	UnusedSelectors []string               `json:"unusedSelectors,omitempty"`
	SelectorErrors  []models.SelectorError `json:"selectorErrors,omitempty"`
}

type compactElement struct {
	Selector string `json:"selector"`
	HTML     string `json:"html,omitempty"`
}

// Outputter 结果文件写入器
type Outputter struct {
	opts OutputOptions
}

// NewOutputter 创建写入器
func NewOutputter(opts OutputOptions) *Outputter {
	return &Outputter{opts: opts}
}

// Write 按显示选项格式化报告并写入文件,返回文件路径
func (o *Outputter) Write(report *models.SearchReport) (string, error) {
	path := OutputFilePath(o.opts)
	if err := WriteJSONFile(path, o.Format(report)); err != nil {
		return "", err
	}
	Infof("💾 结果已写入: %s", path)
	return path, nil
}

// Format 生成写入文件的报告视图
func (o *Outputter) Format(report *models.SearchReport) interface{} {
	out := outputReport{
		CSSSelector:        report.CSSSelector,
		TotalPagesSearched: report.TotalPagesSearched,
		TotalMatches:       report.TotalMatches,
		PagesWithSelector:  make([]outputPage, 0, len(report.PagesWithSelector)),
	}

	for _, page := range report.PagesWithSelector {
		p := outputPage{
			URL:             page.URL,
			Elements:        make([]interface{}, 0, len(page.Elements)),
			UsedSelectors:   page.UsedSelectors,
			UnusedSelectors: page.UnusedSelectors,
			SelectorErrors:  page.SelectorErrors,
		}
		for _, el := range page.Elements {
			if !o.opts.ShowHTML {
				el.HTML = ""
			}
			if o.opts.ShowElementDetails {
				p.Elements = append(p.Elements, el)
			} else {
				p.Elements = append(p.Elements, compactElement{Selector: el.Selector, HTML: el.HTML})
			}
		}
		out.PagesWithSelector = append(out.PagesWithSelector, p)
	}

	return out
}
