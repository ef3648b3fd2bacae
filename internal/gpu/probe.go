// Package gpu provides an optional, best-effort per-process GPU usage probe
// backed by NVML (spec §4.F). A probe that cannot initialize NVML (no
// driver, no device, any other failure) degrades to a disabled probe rather
// than propagating an error: GPU visibility is additive, never required.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/domain"
)

// Probe reports per-process GPU memory and utilization across every visible
// device. It is safe for concurrent use; NVML calls are serialized because
// the underlying library is not guaranteed reentrant across goroutines.
type Probe struct {
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	devices     []nvml.Device
}

// New attempts to initialize NVML and enumerate devices. On any failure it
// logs a warning and returns a Probe in the disabled state: every
// subsequent Sample call returns an empty map rather than an error.
func New(logger *zap.Logger) *Probe {
	p := &Probe{logger: logger}
	if err := p.init(); err != nil {
		logger.Warn("gpu probe disabled", zap.Error(err))
	}
	return p
}

// Enabled reports whether NVML initialized and at least one device was found.
func (p *Probe) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *Probe) init() error {
	if ret := nvml.Init(); !errors.Is(ret, nvml.SUCCESS) {
		return fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if !errors.Is(ret, nvml.SUCCESS) {
		nvml.Shutdown()
		return fmt.Errorf("nvml device count: %s", nvml.ErrorString(ret))
	}
	if count == 0 {
		nvml.Shutdown()
		return errors.New("no nvidia devices present")
	}

	devices := make([]nvml.Device, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if !errors.Is(ret, nvml.SUCCESS) {
			continue
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		nvml.Shutdown()
		return errors.New("no nvidia device handles resolved")
	}

	p.devices = devices
	p.initialized = true
	return nil
}

// Sample returns one domain.GPUUsage per pid currently holding a GPU
// context, summed across every visible device. Disabled probes and
// per-device query failures both resolve to a quiet empty/partial result.
func (p *Probe) Sample() map[uint32]domain.GPUUsage {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	usage := make(map[uint32]domain.GPUUsage)
	for _, dev := range p.devices {
		p.sampleDevice(dev, usage)
	}
	return usage
}

func (p *Probe) sampleDevice(dev nvml.Device, usage map[uint32]domain.GPUUsage) {
	if procs, ret := dev.GetComputeRunningProcesses(); errors.Is(ret, nvml.SUCCESS) {
		for _, proc := range procs {
			entry := usage[proc.Pid]
			entry.VRAMBytes += proc.UsedGpuMemory
			usage[proc.Pid] = entry
		}
	}
	if procs, ret := dev.GetGraphicsRunningProcesses(); errors.Is(ret, nvml.SUCCESS) {
		for _, proc := range procs {
			entry := usage[proc.Pid]
			entry.VRAMBytes += proc.UsedGpuMemory
			usage[proc.Pid] = entry
		}
	}

	samples, ret := dev.GetProcessUtilization(0)
	if !errors.Is(ret, nvml.SUCCESS) {
		return
	}
	for _, s := range samples {
		entry := usage[s.Pid]
		entry.UtilizationPct += float64(s.SmUtil)
		usage[s.Pid] = entry
	}
}

// Close shuts down NVML if it was initialized. Safe to call on a disabled probe.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		nvml.Shutdown()
		p.initialized = false
	}
	return nil
}
