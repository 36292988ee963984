package utils

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo summarises the host for the startup log. Fields that cannot be read are left out.
func SystemInfo() string {
	var parts []string
	if hostInfo, err := host.Info(); err == nil {
		parts = append(parts, fmt.Sprintf("OS: %s %s (kernel %s)", hostInfo.Platform, hostInfo.PlatformVersion, hostInfo.KernelVersion))
	}
	parts = append(parts, "Go: "+runtime.Version())
	if n, err := cpu.Counts(true); err == nil {
		parts = append(parts, fmt.Sprintf("CPUs: %d", n))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		parts = append(parts, fmt.Sprintf("Memory: %.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024))
	}
	parts = append(parts, fmt.Sprintf("Goroutines: %d", runtime.NumGoroutine()))
	return strings.Join(parts, "\n")
}
