package models

// SitemapEntry 链接集合缓存中的一项,对应sitemap中的 <loc>
type SitemapEntry struct {
	Loc string `json:"loc"`
}

// SitemapFilename 链接集合缓存文件名
func SitemapFilename(origin string) string {
	return CacheBaseName(origin) + ".sitemap.json"
}

// RobotsFilename robots规则缓存文件名
func RobotsFilename(origin string) string {
	return CacheBaseName(origin) + ".robots.json"
}

// AgentRules 单个User-agent的规则
type AgentRules struct {
	Allow    []string `json:"allow"`
	Disallow []string `json:"disallow"`
}

// RobotsExport robots规则的导出格式
type RobotsExport struct {
	URL       string                `json:"url"`       // 站点URL
	RobotsURL string                `json:"robotsUrl"` // robots.txt地址
	Allow     []string              `json:"allow"`     // 所有agent的allow并集
	Disallow  []string              `json:"disallow"`  // 所有agent的disallow并集
	Agents    map[string]AgentRules `json:"agents"`
}
