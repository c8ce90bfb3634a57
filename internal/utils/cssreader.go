package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// ReadSelectorsFromCSS 读取CSS文件中所有样式规则的选择器(去重,保持出现顺序)
// @media/@supports 等嵌套规则中的选择器也会收集,@keyframes 的帧选择器除外
func ReadSelectorsFromCSS(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取CSS文件失败: %w", err)
	}

	sheet, err := parser.Parse(string(data))
	if err != nil {
		return nil, models.NewParseError("css_file", path, err)
	}

	seen := make(map[string]bool)
	selectors := make([]string, 0)
	collectSelectors(sheet.Rules, seen, &selectors)

	Debugf("从CSS文件 %s 读取了 %d 个选择器", path, len(selectors))
	return selectors, nil
}

func collectSelectors(rules []*css.Rule, seen map[string]bool, out *[]string) {
	for _, rule := range rules {
		if rule.Kind == css.AtRule {
			if strings.Contains(strings.ToLower(rule.Name), "keyframes") {
				continue
			}
			collectSelectors(rule.Rules, seen, out)
			continue
		}
		for _, sel := range rule.Selectors {
			sel = strings.TrimSpace(sel)
			if sel == "" || seen[sel] {
				continue
			}
			seen[sel] = true
			*out = append(*out, sel)
		}
	}
}
