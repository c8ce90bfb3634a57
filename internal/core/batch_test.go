package core

import (
	"context"
	"testing"
)

func TestBatchOutputName(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		file   string
		want   string
	}{
		{"默认文件名", "https://x.com", "pages.json", "x.com"},
		{"空文件名", "http://127.0.0.1:8080", "", "127.0.0.1:8080"},
		{"自定义文件名", "https://x.com", "report", "x.com.report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BatchOutputName(tt.origin, tt.file); got != tt.want {
				t.Errorf("BatchOutputName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchFinder_Run(t *testing.T) {
	good := testSite(t, map[string]string{
		"/sitemap.xml": sitemapOf("/a"),
		"/a":           matchingPage,
	})
	bad := testSite(t, map[string]string{})

	template := testConfig(t, "")
	urls := []string{bad.URL + "/sitemap.xml", "not a url", good.URL + "/sitemap.xml"}

	summary, err := NewBatchFinder(template, FinderOptions{Quiet: true}, 0, true, nil).Run(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalURLs != 3 || summary.SuccessCount != 1 || summary.FailCount != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TotalMatches != 1 || summary.PagesScanned != 1 {
		t.Errorf("汇总的搜索统计错误: %+v", summary)
	}
	if !summary.Results[2].Success || summary.Results[2].Summary.OutputFile == "" {
		t.Errorf("最后一个站点应成功: %+v", summary.Results[2])
	}

	stopped, err := NewBatchFinder(template, FinderOptions{Quiet: true}, 0, false, nil).Run(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	if len(stopped.Results) != 1 {
		t.Errorf("continueOnErr=false 时应在第一个失败后停止, 处理了 %d 个", len(stopped.Results))
	}
}
