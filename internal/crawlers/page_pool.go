package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultResourceWait 资源紧张时创建标签页前的最长等待
const DefaultResourceWait = 30 * time.Second

// 由浏览器自行决定的头部, 不作为额外头部发送
var browserManagedHeaders = map[string]bool{
	"Accept":          true,
	"Accept-Encoding": true,
}

// PagePool 标签页管理
// 每个URL使用一个新标签页, 用完立即关闭, 不复用
type PagePool struct {
	browser         *rod.Browser
	resourceMonitor *ResourceMonitor
	headerProvider  models.HeaderProvider
	resourceWait    time.Duration

	mu     sync.Mutex
	pages  map[proto.TargetTargetID]*rod.Page
	closed bool
	opened int
}

// NewPagePool 创建标签页管理器, resourceMonitor 和 headerProvider 可以为nil
func NewPagePool(browser *Browser, resourceMonitor *ResourceMonitor, headerProvider models.HeaderProvider) *PagePool {
	return &PagePool{
		browser:         browser.Rod(),
		resourceMonitor: resourceMonitor,
		headerProvider:  headerProvider,
		resourceWait:    DefaultResourceWait,
		pages:           make(map[proto.TargetTargetID]*rod.Page),
	}
}

// Acquire 打开一个绑定ctx的新标签页
func (pp *PagePool) Acquire(ctx context.Context) (*rod.Page, error) {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	pp.mu.Unlock()

	if pp.resourceMonitor != nil {
		if err := pp.resourceMonitor.WaitForResources(ctx, pp.resourceWait); err != nil {
			return nil, err
		}
	}

	page, err := pp.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewNetworkError("create_page", "", fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err))
	}

	if err := pp.applyHeaders(page); err != nil {
		utils.Warnf("设置标签页HTTP头部失败: %v", err)
	}

	pp.mu.Lock()
	pp.pages[page.TargetID] = page
	pp.opened++
	open := len(pp.pages)
	pp.mu.Unlock()

	utils.Debugf("打开标签页 %s, 当前标签页数: %d", page.TargetID, open)
	return page.Context(ctx), nil
}

// applyHeaders 通过 Network.setExtraHTTPHeaders 发送自定义头部
func (pp *PagePool) applyHeaders(page *rod.Page) error {
	if pp.headerProvider == nil {
		return nil
	}
	headers, err := pp.headerProvider.GetHeaders()
	if err != nil {
		return err
	}

	dict := extraHeaderDict(headers)
	if len(dict) == 0 {
		return nil
	}
	_, err = page.SetExtraHeaders(dict)
	return err
}

// extraHeaderDict 转为 SetExtraHeaders 需要的 name,value 交替列表
func extraHeaderDict(headers http.Header) []string {
	var dict []string
	for name, values := range headers {
		if browserManagedHeaders[http.CanonicalHeaderKey(name)] || len(values) == 0 {
			continue
		}
		dict = append(dict, name, values[0])
	}
	return dict
}

// Release 关闭标签页
// 调用方的ctx可能已取消, 关闭使用独立的context
func (pp *PagePool) Release(page *rod.Page) error {
	if page == nil {
		return nil
	}

	pp.mu.Lock()
	delete(pp.pages, page.TargetID)
	pp.mu.Unlock()

	if err := page.Context(context.Background()).Close(); err != nil {
		utils.Warnf("关闭标签页失败 %s: %v", page.TargetID, err)
		return models.NewCleanupError("close_page", string(page.TargetID), err)
	}
	utils.Debugf("关闭标签页 %s", page.TargetID)
	return nil
}

// CurrentSize 尚未关闭的标签页数
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// Opened 累计打开的标签页数
func (pp *PagePool) Opened() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.opened
}

// Close 关闭所有遗留标签页
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil
	}
	pp.closed = true
	leftovers := make([]*rod.Page, 0, len(pp.pages))
	for _, page := range pp.pages {
		leftovers = append(leftovers, page)
	}
	pp.pages = make(map[proto.TargetTargetID]*rod.Page)
	pp.mu.Unlock()

	var errs []error
	for _, page := range leftovers {
		if err := page.Context(context.Background()).Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return models.NewCleanupError("close_pages", "", errors.Join(errs...))
	}

	utils.Debugf("标签页池已关闭")
	return nil
}
