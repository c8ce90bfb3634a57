package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/kennygrant/sanitize"

	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// ScreenshotName 由页面URL和元素序号生成截图文件名
// 例如 https://x.com/a/b?q=1 第3个元素 -> x-com-a-b-q-1-3.png
func ScreenshotName(pageURL string, index int) string {
	name := strings.TrimPrefix(pageURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.Trim(name, "/")
	name = strings.NewReplacer("?", "-", "&", "-", "=", "-", "#", "-").Replace(name)
	base := strings.Trim(sanitize.BaseName(name), "-")
	if base == "" {
		base = "page"
	}
	return fmt.Sprintf("%s-%d.png", base, index)
}

// captureScreenshots 为每个命中选择器的元素截图,返回写入的文件数
// 单个元素截图失败只记录日志
func captureScreenshots(page *rod.Page, pageURL, dir string, selectors []string) int {
	if err := os.MkdirAll(dir, 0755); err != nil {
		utils.Warnf("创建截图目录失败 [%s]: %v", dir, err)
		return 0
	}

	index, saved := 0, 0
	for _, sel := range selectors {
		elements, err := page.Elements(sel)
		if err != nil {
			utils.Warnf("截图时查询元素失败 [%s] %q: %v", pageURL, sel, err)
			continue
		}
		for _, el := range elements {
			index++
			data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
			if err != nil {
				utils.Warnf("元素截图失败 [%s] #%d: %v", pageURL, index, err)
				continue
			}
			path := filepath.Join(dir, ScreenshotName(pageURL, index))
			if err := os.WriteFile(path, data, 0644); err != nil {
				utils.Warnf("保存截图失败 [%s]: %v", path, err)
				continue
			}
			saved++
		}
	}
	return saved
}
