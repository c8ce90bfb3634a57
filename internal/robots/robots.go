// Package robots 解析robots.txt并提供简化的路径规则查询
//
// 规则匹配采用子串匹配: 只要某条规则路径出现在URL的path中即视为命中。
// 不识别 Crawl-delay、通配符(*)和行尾锚点($)。
package robots

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// DefaultAgent 默认匹配的User-agent
const DefaultAgent = "*"

// Getter 获取URL内容
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RobotsURL 将站点或页面URL规范为robots.txt地址
// 路径已以 robots.txt 结尾时保持不变
func RobotsURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", models.NewInvalidInputError("robots_url", raw, fmt.Errorf("URL不能为空"))
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", models.NewInvalidInputError("robots_url", raw, fmt.Errorf("不是有效的HTTP(S) URL"))
	}

	if !strings.HasSuffix(u.Path, "robots.txt") {
		u.Path = "/robots.txt"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// pathSet 保持插入顺序的路径集合
type pathSet struct {
	items []string
	index map[string]bool
}

func (s *pathSet) add(p string) {
	if s.index == nil {
		s.index = make(map[string]bool)
	}
	if s.index[p] {
		return
	}
	s.index[p] = true
	s.items = append(s.items, p)
}

func (s *pathSet) list() []string {
	return append([]string{}, s.items...)
}

// matches 任一规则是path的子串
func (s *pathSet) matches(path string) bool {
	for _, rule := range s.items {
		if strings.Contains(path, rule) {
			return true
		}
	}
	return false
}

type agentRules struct {
	allow    pathSet
	disallow pathSet
}

// RuleSet 解析后的robots规则
// 全局 allow/disallow 是所有agent规则的并集
type RuleSet struct {
	agents     map[string]*agentRules
	agentOrder []string
	allow      pathSet
	disallow   pathSet
}

// ParseRules 解析robots.txt文本
//
// User-agent 行开启新的当前agent; Allow/Disallow 行去掉 # 注释和首尾空白后,
// 同时加入全局集合和当前agent的集合。出现在任何 User-agent 之前的
// Allow/Disallow 行没有可归属的agent,整行忽略。空路径同样忽略。
func ParseRules(text string) *RuleSet {
	rs := &RuleSet{agents: make(map[string]*agentRules)}
	var current *agentRules

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		directive, value, ok := splitDirective(line)
		if !ok {
			continue
		}

		switch directive {
		case "user-agent":
			if value == "" {
				continue
			}
			current = rs.agent(value)
		case "allow", "disallow":
			if current == nil || value == "" {
				continue
			}
			if directive == "allow" {
				rs.allow.add(value)
				current.allow.add(value)
			} else {
				rs.disallow.add(value)
				current.disallow.add(value)
			}
		}
	}

	return rs
}

// splitDirective 拆分 "Name: value # comment"
func splitDirective(line string) (string, string, bool) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	if i := strings.Index(value, "#"); i >= 0 {
		value = value[:i]
	}
	return strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value), true
}

func (rs *RuleSet) agent(name string) *agentRules {
	if a, ok := rs.agents[name]; ok {
		return a
	}
	a := &agentRules{}
	rs.agents[name] = a
	rs.agentOrder = append(rs.agentOrder, name)
	return a
}

// lookup 按名称查找agent,先精确匹配再忽略大小写
func (rs *RuleSet) lookup(agent string) *agentRules {
	if agent == "" {
		agent = DefaultAgent
	}
	if a, ok := rs.agents[agent]; ok {
		return a
	}
	for name, a := range rs.agents {
		if strings.EqualFold(name, agent) {
			return a
		}
	}
	return nil
}

// Agents 按出现顺序返回所有agent名称
func (rs *RuleSet) Agents() []string {
	return append([]string{}, rs.agentOrder...)
}

// Allow 全局allow规则
func (rs *RuleSet) Allow() []string { return rs.allow.list() }

// Disallow 全局disallow规则
func (rs *RuleSet) Disallow() []string { return rs.disallow.list() }

// AgentRules 指定agent的规则,agent不存在时返回false
func (rs *RuleSet) AgentRules(agent string) (models.AgentRules, bool) {
	a := rs.lookup(agent)
	if a == nil {
		return models.AgentRules{}, false
	}
	return models.AgentRules{Allow: a.allow.list(), Disallow: a.disallow.list()}, true
}

// IsURLDisallowed URL的path是否包含agent(或matchAnyAgent时全局)的某条disallow规则
func (rs *RuleSet) IsURLDisallowed(rawURL, agent string, matchAnyAgent bool) bool {
	return rs.check(rawURL, agent, matchAnyAgent, func(a *agentRules) *pathSet { return &a.disallow }, &rs.disallow)
}

// IsURLExplicitlyAllowed URL的path是否包含某条allow规则,用于识别disallow中的例外
func (rs *RuleSet) IsURLExplicitlyAllowed(rawURL, agent string, matchAnyAgent bool) bool {
	return rs.check(rawURL, agent, matchAnyAgent, func(a *agentRules) *pathSet { return &a.allow }, &rs.allow)
}

func (rs *RuleSet) check(rawURL, agent string, matchAnyAgent bool, pick func(*agentRules) *pathSet, global *pathSet) bool {
	path, ok := urlPath(rawURL)
	if !ok {
		return false
	}
	if matchAnyAgent {
		return global.matches(path)
	}
	a := rs.lookup(agent)
	if a == nil {
		return false
	}
	return pick(a).matches(path)
}

// Allowed 链接过滤用: 未被禁止,或虽被禁止但有明确的allow例外
// 指定agent没有规则组时退回 "*"
func (rs *RuleSet) Allowed(rawURL, agent string) bool {
	if rs.lookup(agent) == nil {
		agent = DefaultAgent
	}
	if !rs.IsURLDisallowed(rawURL, agent, false) {
		return true
	}
	return rs.IsURLExplicitlyAllowed(rawURL, agent, false)
}

func urlPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Path == "" {
		return "/", true
	}
	return u.Path, true
}

// Engine 获取并缓存robots规则
// 同一文本再次获取时复用已解析的规则
type Engine struct {
	getter          Getter
	siteURL         string
	robotsURL       string
	lastFetchedText string
	rules           *RuleSet
}

// NewEngine 创建规则引擎
func NewEngine(getter Getter) *Engine {
	return &Engine{getter: getter}
}

// FetchRules 获取站点的robots.txt并解析
func (e *Engine) FetchRules(ctx context.Context, siteURL string) (*RuleSet, error) {
	robotsURL, err := RobotsURL(siteURL)
	if err != nil {
		return nil, err
	}

	body, err := e.getter.Get(ctx, robotsURL)
	if err != nil {
		return nil, fmt.Errorf("获取robots.txt失败: %w", err)
	}

	e.siteURL = siteURL
	e.robotsURL = robotsURL

	text := string(body)
	if e.rules != nil && text == e.lastFetchedText {
		utils.Debugf("robots.txt 未变化,复用已解析规则: %s", robotsURL)
		return e.rules, nil
	}

	e.rules = ParseRules(text)
	e.lastFetchedText = text
	utils.Infof("🤖 robots规则: %d 个agent, %d 条allow, %d 条disallow",
		len(e.rules.agentOrder), len(e.rules.allow.items), len(e.rules.disallow.items))
	return e.rules, nil
}

// Rules 最近一次获取的规则,未获取时为nil
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// ToExport 生成导出结构
func (e *Engine) ToExport() models.RobotsExport {
	export := models.RobotsExport{
		URL:       e.siteURL,
		RobotsURL: e.robotsURL,
		Allow:     []string{},
		Disallow:  []string{},
		Agents:    make(map[string]models.AgentRules),
	}
	if e.rules == nil {
		return export
	}
	export.Allow = e.rules.Allow()
	export.Disallow = e.rules.Disallow()
	for _, name := range e.rules.agentOrder {
		rules, _ := e.rules.AgentRules(name)
		export.Agents[name] = rules
	}
	return export
}

// Export 写入 <origin>.robots.json,返回文件路径
func (e *Engine) Export(dir string) (string, error) {
	origin, err := models.OriginOf(e.robotsURL)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, models.RobotsFilename(origin))
	if err := utils.WriteJSONFile(path, e.ToExport()); err != nil {
		return "", err
	}
	utils.Debugf("robots规则已导出: %s", path)
	return path, nil
}
