package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/models"
	"github.com/RecoveryAshes/selectorhound/internal/utils"
)

// BatchFinder 批量搜索器,按顺序对每个站点运行一个Finder
type BatchFinder struct {
	config         models.SearchConfig
	opts           FinderOptions
	batchDelay     time.Duration
	continueOnErr  bool
	headerProvider models.HeaderProvider
}

// BatchResult 单个站点的搜索结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Summary     *models.SearchSummary
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量搜索摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	PagesScanned  int
	TotalMatches  int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchFinder 创建批量搜索器
// config 作为每个站点的模板,URL 由 Run 的参数替换
func NewBatchFinder(config models.SearchConfig, opts FinderOptions, batchDelay int, continueOnErr bool, headerProvider models.HeaderProvider) *BatchFinder {
	return &BatchFinder{
		config:         config,
		opts:           opts,
		batchDelay:     time.Duration(batchDelay) * time.Second,
		continueOnErr:  continueOnErr,
		headerProvider: headerProvider,
	}
}

// Run 批量搜索URL列表
func (bf *BatchFinder) Run(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量搜索: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	for i, targetURL := range urls {
		if ctx.Err() != nil {
			utils.Warn("批量搜索已取消")
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := bf.runSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Summary != nil {
			summary.PagesScanned += result.Summary.PagesScanned
			summary.TotalMatches += result.Summary.TotalMatches
		}
		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 搜索失败: %v", result.Error)

			if !bf.continueOnErr {
				utils.Warn("批量搜索中止 (continue_on_error=false)")
				break
			}
		}

		// 最后一个URL不需要延迟
		if i < len(urls)-1 && bf.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bf.batchDelay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(bf.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()

	bf.printSummary(summary)

	return summary, ctx.Err()
}

// runSingleURL 搜索单个站点,输出文件名加上站点前缀避免互相覆盖
func (bf *BatchFinder) runSingleURL(ctx context.Context, targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	config := bf.config
	config.URL = targetURL
	if origin, err := models.OriginOf(targetURL); err == nil {
		config.OutputFileName = BatchOutputName(origin, bf.config.OutputFileName)
	}

	finder, err := NewFinder(config, bf.headerProvider, bf.opts)
	if err != nil {
		result.Error = fmt.Errorf("创建搜索器失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}

	_, searchSummary, err := finder.Run(ctx)
	result.Summary = searchSummary
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = fmt.Errorf("搜索失败: %w", err)
		return result
	}

	result.Success = true
	return result
}

// BatchOutputName 批量模式下每个站点的输出文件名
// 例如 https://x.com 和 pages.json 得到 x.com, 最终写入 x.com.pages.json
func BatchOutputName(origin, name string) string {
	base := models.CacheBaseName(origin)
	if name == "" || name == utils.DefaultOutputFileName {
		return base
	}
	return base + "." + name
}

// printSummary 打印批量搜索摘要
func (bf *BatchFinder) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量搜索摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 搜索页面数: %d", summary.PagesScanned)
	utils.Infof("🎯 总结果数: %d", summary.TotalMatches)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
