package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/selectorhound/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceMonitorConfig 资源监控配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 留给系统的内存(字节)
	MemoryThreshold     int64 // 扣除保留后打开新标签页所需的最少可用内存(字节)
	CPULoadThreshold    int   // CPU负载阈值(%), 0 或 >=200 不检查
}

// MemoryStatus 内存状态
type MemoryStatus struct {
	TotalMemory     uint64
	AvailableMemory uint64
	UsedPercent     float64
	SafetyReserve   int64
	Threshold       int64
	CPUUsage        float64
	MemoryPressure  string // normal, warning, critical
}

// ResourceMonitor 打开浏览器标签页前的资源检查
type ResourceMonitor struct {
	config ResourceMonitorConfig

	mu        sync.RWMutex
	lastMem   *mem.VirtualMemoryStat
	lastCPU   float64
	sampledAt time.Time

	cancelFunc context.CancelFunc
	isRunning  bool

	readMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	readCPU    func(ctx context.Context) (float64, error)
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	return &ResourceMonitor{
		config:     config,
		readMemory: mem.VirtualMemoryWithContext,
		readCPU:    readCPUPercent,
	}
}

// readCPUPercent 所有核心的平均使用率, 与上次调用之间的区间
func readCPUPercent(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// Sample 采样一次内存和CPU
func (rm *ResourceMonitor) Sample(ctx context.Context) error {
	vm, err := rm.readMemory(ctx)
	if err != nil {
		return fmt.Errorf("获取系统内存失败: %w", err)
	}

	cpuUsage, err := rm.readCPU(ctx)
	if err != nil {
		utils.Debugf("获取CPU使用率失败: %v", err)
	}

	rm.mu.Lock()
	rm.lastMem = vm
	rm.lastCPU = cpuUsage
	rm.sampledAt = time.Now()
	rm.mu.Unlock()
	return nil
}

// StartMonitoring 后台周期采样, 重复调用无效果
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rm.Sample(ctx); err != nil && ctx.Err() == nil {
				utils.Warnf("资源采样失败: %v", err)
			}
		}
	}
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CheckResourceAvailability 当前资源是否允许打开新标签页
// 没有采样数据时先同步采样一次; 采样失败不阻止创建
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	sampled := rm.lastMem != nil
	rm.mu.RUnlock()

	if !sampled {
		if err := rm.Sample(context.Background()); err != nil {
			utils.Warnf("%v, 跳过资源检查", err)
			return true, ""
		}
	}

	rm.mu.RLock()
	vm := rm.lastMem
	cpuUsage := rm.lastCPU
	rm.mu.RUnlock()

	usable := int64(vm.Available) - rm.config.SafetyReserveMemory
	if usable < rm.config.MemoryThreshold {
		return false, fmt.Sprintf("内存不足(可用%dMB, 保留%dMB)", int64(vm.Available)/mb, rm.config.SafetyReserveMemory/mb)
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 &&
		cpuUsage > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
	}

	return true, ""
}

// WaitForResources 等待资源可用, 最多等待maxWait
// 超时后只记录警告并放行, 搜索不会因资源紧张而中止
func (rm *ResourceMonitor) WaitForResources(ctx context.Context, maxWait time.Duration) error {
	ok, reason := rm.CheckResourceAvailability()
	if ok {
		return nil
	}
	utils.Warnf("⚠️  %s, 等待资源释放", reason)

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			utils.Warnf("资源仍然紧张(%s), 继续执行", reason)
			return nil
		case <-poll.C:
			if err := rm.Sample(ctx); err != nil {
				continue
			}
			if ok, reason = rm.CheckResourceAvailability(); ok {
				utils.Debugf("资源已恢复")
				return nil
			}
		}
	}
}

// GetMemoryStatus 最近一次采样的内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	status := MemoryStatus{
		SafetyReserve:  rm.config.SafetyReserveMemory,
		Threshold:      rm.config.MemoryThreshold,
		CPUUsage:       rm.lastCPU,
		MemoryPressure: "normal",
	}
	if rm.lastMem == nil {
		return status
	}

	status.TotalMemory = rm.lastMem.Total
	status.AvailableMemory = rm.lastMem.Available
	status.UsedPercent = rm.lastMem.UsedPercent

	usable := int64(rm.lastMem.Available) - rm.config.SafetyReserveMemory
	switch {
	case usable < rm.config.MemoryThreshold:
		status.MemoryPressure = "critical"
	case usable < 2*rm.config.MemoryThreshold:
		status.MemoryPressure = "warning"
	}
	return status
}
