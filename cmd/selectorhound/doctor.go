package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/selectorhound/internal/core"
	"github.com/RecoveryAshes/selectorhound/internal/crawlers"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "检查运行环境",
	Long:  "检查浏览器、内存余量、CPU和配置文件,dynamic模式运行前建议先执行",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("==============================================")
		fmt.Println("  selectorhound 环境检查")
		fmt.Println("==============================================")

		if !runDoctor(cmd.Context(), appConfig) {
			fmt.Println("❌ 环境检查未通过,dynamic模式可能不可用")
			os.Exit(1)
		}
		fmt.Println("✅ 环境检查通过")
		return nil
	},
}

// runDoctor 逐项检查并打印结果,返回是否全部通过
func runDoctor(ctx context.Context, config *core.Config) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本机浏览器 - dynamic模式首次运行时会自动下载Chromium")
	}

	if logical, err := cpu.CountsWithContext(ctx, true); err == nil {
		physical, _ := cpu.CountsWithContext(ctx, false)
		fmt.Printf("✅ CPU: %d 逻辑核心 / %d 物理核心\n", logical, physical)
	} else {
		fmt.Printf("⚠️  无法读取CPU信息: %v\n", err)
	}

	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		SafetyReserveMemory: int64(config.Resource.SafetyReserveMemory) * 1024 * 1024,
		MemoryThreshold:     int64(config.Resource.MemoryThreshold) * 1024 * 1024,
		CPULoadThreshold:    config.Resource.CPULoadThreshold,
	})
	sampleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := monitor.Sample(sampleCtx); err != nil {
		fmt.Printf("⚠️  无法读取内存信息: %v\n", err)
	} else {
		status := monitor.GetMemoryStatus()
		fmt.Printf("✅ 内存: 可用 %d MB / 共 %d MB (压力: %s)\n",
			status.AvailableMemory/1024/1024, status.TotalMemory/1024/1024, status.MemoryPressure)
		if ok, reason := monitor.CheckResourceAvailability(); !ok {
			fmt.Printf("❌ 资源不足: %s\n", reason)
			allOK = false
		}
	}

	headerManager, err := core.NewHeaderManager(config.Headers.ConfigFile, headers)
	if err != nil {
		fmt.Printf("❌ HTTP头部参数无效: %v\n", err)
		return false
	}
	safeHeaders, err := headerManager.GetSafeHeaders()
	if err != nil {
		fmt.Printf("❌ HTTP头部配置无效 (%s): %v\n", config.Headers.ConfigFile, err)
		allOK = false
	} else {
		fmt.Printf("✅ HTTP头部: %d 个\n", len(safeHeaders))
		for name, value := range safeHeaders {
			fmt.Printf("   %s: %s\n", name, value)
		}
	}

	fmt.Printf("✅ 链接缓存目录: %s\n", config.Discovery.CacheDir)
	fmt.Printf("✅ 默认选择器: %s (模式: %s)\n", config.Search.Selector, config.Search.Mode)

	return allOK
}
