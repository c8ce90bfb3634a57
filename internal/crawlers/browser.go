package crawlers

import (
	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserOptions 浏览器启动参数
type BrowserOptions struct {
	Headless bool
	Insecure bool   // 忽略证书错误
	Bin      string // 浏览器路径, 为空时查找本机浏览器, 找不到再由rod下载
}

// Browser 一次搜索共用的浏览器实例
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// LaunchBrowser 启动并连接浏览器
func LaunchBrowser(opts BrowserOptions) (*Browser, error) {
	l := launcher.New().Headless(opts.Headless)

	bin := opts.Bin
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		}
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	if opts.Insecure {
		l = l.Set("ignore-certificate-errors")
		utils.Debugf("浏览器启动参数: --ignore-certificate-errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewNetworkError("launch_browser", bin, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewNetworkError("connect_browser", controlURL, err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &Browser{browser: b, launcher: l}, nil
}

// Rod 底层rod实例
func (b *Browser) Rod() *rod.Browser {
	return b.browser
}

// Close 关闭浏览器, 失败时强制结束进程并返回 ErrResourceCleanup 类错误
func (b *Browser) Close() error {
	if b == nil || b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	if err != nil {
		b.launcher.Kill()
		return models.NewCleanupError("close_browser", "", err)
	}
	b.launcher.Cleanup()
	b.browser = nil
	utils.Debugf("浏览器已关闭")
	return nil
}
