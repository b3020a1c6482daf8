package report

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host describes the machine a report was measured on.
type Host struct {
	CPUModel     string `json:"cpu_model" yaml:"cpu_model"`
	LogicalCores int    `json:"logical_cores" yaml:"logical_cores"`
	MemoryTotal  uint64 `json:"memory_total_bytes" yaml:"memory_total_bytes"`
	OS           string `json:"os" yaml:"os"`
	Arch         string `json:"arch" yaml:"arch"`
}

// HostInfo detects the current host.
func HostInfo() (*Host, error) {
	h := &Host{OS: runtime.GOOS, Arch: runtime.GOARCH, CPUModel: "unknown"}

	infos, err := cpu.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu info: %w", err)
	}
	if len(infos) > 0 && infos[0].ModelName != "" {
		h.CPUModel = infos[0].ModelName
	}

	cores, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("failed to count cpus: %w", err)
	}
	h.LogicalCores = cores

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory info: %w", err)
	}
	h.MemoryTotal = vm.Total
	return h, nil
}
