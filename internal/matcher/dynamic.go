package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// PageSource 提供一次性标签页, crawlers.PagePool 实现了该接口
type PageSource interface {
	Acquire(ctx context.Context) (*rod.Page, error)
	Release(page *rod.Page) error
}

// DynamicOptions 动态匹配配置
type DynamicOptions struct {
	WaitTime        time.Duration // 页面加载完成后额外等待
	NavigateTimeout time.Duration // 导航+加载超时,0表示不限
	Screenshots     bool          // 为命中元素截图
	ScreenshotDir   string        // 截图目录
}

// queryScript 在页面中执行querySelectorAll,选择器语法错误以 {error} 返回
const queryScript = `(selector) => {
	let nodes;
	try {
		nodes = document.querySelectorAll(selector);
	} catch (e) {
		return { error: String((e && e.message) || e) };
	}
	return {
		elements: Array.from(nodes).map((el) => {
			const attributes = {};
			for (const attr of Array.from(el.attributes)) {
				attributes[attr.name] = attr.value;
			}
			return {
				tag: el.tagName.toLowerCase(),
				attributes: attributes,
				innerText: (el.innerText || el.textContent || '').trim(),
				html: el.outerHTML,
			};
		}),
	};
}`

type queryResult struct {
	Error    string `json:"error"`
	Elements []struct {
		Tag        string            `json:"tag"`
		Attributes map[string]string `json:"attributes"`
		InnerText  string            `json:"innerText"`
		HTML       string            `json:"html"`
	} `json:"elements"`
}

// DynamicMatcher 在真实浏览器中渲染页面后查询
// 每个URL使用一个新标签页,求值结束后(包括失败路径)立即关闭
type DynamicMatcher struct {
	pages PageSource
	opts  DynamicOptions
}

// NewDynamicMatcher 创建动态匹配器
func NewDynamicMatcher(pages PageSource, opts DynamicOptions) *DynamicMatcher {
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "screenshots"
	}
	return &DynamicMatcher{pages: pages, opts: opts}
}

// Match 导航到页面并逐个求值选择器
func (m *DynamicMatcher) Match(ctx context.Context, pageURL string, selectors []string) (*models.PageSearchResult, error) {
	page, err := m.pages.Acquire(ctx)
	if err != nil {
		return nil, models.NewNetworkError("acquire", pageURL, err)
	}
	defer func() {
		if err := m.pages.Release(page); err != nil {
			utils.Warnf("关闭标签页失败 [%s]: %v", pageURL, err)
		}
	}()

	if err := m.navigate(page, pageURL); err != nil {
		return nil, err
	}

	if m.opts.WaitTime > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.opts.WaitTime):
		}
	}
	utils.Debugf("页面加载完成: %s", pageURL)

	acc := newAccumulator(pageURL)
	for _, sel := range selectors {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		matches, err := m.query(page, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			acc.fail(sel, err)
			continue
		}
		acc.record(sel, matches)
	}

	if m.opts.Screenshots && len(acc.used) > 0 {
		saved := captureScreenshots(page, pageURL, m.opts.ScreenshotDir, acc.used)
		utils.Debugf("保存了 %d 张截图: %s", saved, pageURL)
	}

	return acc.result(), nil
}

func (m *DynamicMatcher) navigate(page *rod.Page, pageURL string) error {
	nav := page
	if m.opts.NavigateTimeout > 0 {
		nav = page.Timeout(m.opts.NavigateTimeout)
		defer nav.CancelTimeout()
	}

	if err := nav.Navigate(pageURL); err != nil {
		return models.NewNetworkError("navigate", pageURL, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return models.NewNetworkError("navigate", pageURL, fmt.Errorf("等待页面加载失败: %w", err))
	}
	return nil
}

// query 在页面中执行单个选择器
func (m *DynamicMatcher) query(page *rod.Page, selector string) ([]models.ElementMatch, error) {
	res, err := page.Evaluate(rod.Eval(queryScript, selector))
	if err != nil {
		return nil, fmt.Errorf("执行查询脚本失败: %w", err)
	}

	var out queryResult
	if err := res.Value.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("解析查询结果失败: %w", err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}

	matches := make([]models.ElementMatch, 0, len(out.Elements))
	for _, el := range out.Elements {
		attrs := el.Attributes
		if len(attrs) == 0 {
			attrs = nil
		}
		matches = append(matches, models.ElementMatch{
			Tag:        el.Tag,
			Attributes: attrs,
			InnerText:  el.InnerText,
			Selector:   selector,
			HTML:       el.HTML,
		})
	}
	return matches, nil
}
