package matcher

import "strings"

// SplitSelectors 将逗号连接的选择器字符串拆分为独立选择器
// 只在最外层逗号处拆分,括号、方括号和引号内的逗号保留
// 例如 "a, div:is(p, span), [title='x,y']" -> ["a", "div:is(p, span)", "[title='x,y']"]
func SplitSelectors(input string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			i++
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = appendSelector(parts, string(runes[start:i]))
			start = i + 1
		}
	}
	return appendSelector(parts, string(runes[start:]))
}

func appendSelector(parts []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return parts
	}
	return append(parts, s)
}

// NormalizeSelectors 拆分每一项,去掉空白项并按首次出现顺序去重
func NormalizeSelectors(items []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, item := range items {
		for _, sel := range SplitSelectors(item) {
			if seen[sel] {
				continue
			}
			seen[sel] = true
			result = append(result, sel)
		}
	}
	return result
}
