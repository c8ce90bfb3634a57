package matcher

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/selectorhound/internal/crawlers"
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// Matcher 在单个页面上求值一组选择器
// 返回error表示页面获取失败(该页跳过); 返回 nil, nil 表示没有任何命中
type Matcher interface {
	Match(ctx context.Context, pageURL string, selectors []string) (*models.PageSearchResult, error)
}

// Dependencies 构造Matcher所需的依赖,按模式取用
type Dependencies struct {
	Fetcher crawlers.DocumentFetcher // static
	Pages   PageSource               // dynamic
	Dynamic DynamicOptions           // dynamic
}

// New 按模式选择实现
func New(mode models.RenderMode, deps Dependencies) (Matcher, error) {
	switch mode {
	case models.ModeStatic, "":
		if deps.Fetcher == nil {
			return nil, models.NewInvalidInputError("matcher", string(mode), fmt.Errorf("static模式需要Fetcher"))
		}
		return NewStaticMatcher(deps.Fetcher), nil
	case models.ModeDynamic:
		if deps.Pages == nil {
			return nil, models.NewInvalidInputError("matcher", string(mode), fmt.Errorf("dynamic模式需要页面来源"))
		}
		return NewDynamicMatcher(deps.Pages, deps.Dynamic), nil
	}
	return nil, models.NewInvalidInputError("matcher", string(mode), fmt.Errorf("未知模式"))
}

// accumulator 收集单个页面上各选择器的求值结果
type accumulator struct {
	url      string
	elements []models.ElementMatch
	used     []string
	unused   []string
	errors   []models.SelectorError
}

func newAccumulator(pageURL string) *accumulator {
	return &accumulator{url: pageURL}
}

// record 记录一次成功的查询,0个命中计为未使用
func (a *accumulator) record(selector string, matches []models.ElementMatch) {
	if len(matches) == 0 {
		a.unused = append(a.unused, selector)
		return
	}
	a.elements = append(a.elements, matches...)
	a.used = append(a.used, selector)
}

// fail 记录求值失败的选择器,不影响其他选择器
func (a *accumulator) fail(selector string, err error) {
	utils.Warnf("选择器求值失败 [%s] %q: %v", a.url, selector, err)
	a.errors = append(a.errors, models.SelectorError{Selector: selector, Message: err.Error()})
}

// result 没有任何命中时返回nil,即使存在选择器错误
func (a *accumulator) result() *models.PageSearchResult {
	if len(a.elements) == 0 {
		if len(a.errors) > 0 {
			utils.Debugf("页面无命中, %d 个选择器出错: %s", len(a.errors), a.url)
		}
		return nil
	}
	return &models.PageSearchResult{
		URL:             a.url,
		Elements:        a.elements,
		UsedSelectors:   a.used,
		UnusedSelectors: a.unused,
		SelectorErrors:  a.errors,
	}
}
