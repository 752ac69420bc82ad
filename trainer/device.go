package trainer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nvr-ai/debris/common"
)

// DeviceKind is the class of compute a run is placed on.
type DeviceKind string

const (
	DeviceCPU  DeviceKind = "cpu"
	DeviceMPS  DeviceKind = "mps"
	DeviceCUDA DeviceKind = "cuda"
)

// Device is a parsed device specifier.
type Device struct {
	Kind DeviceKind
	// GPUs lists the CUDA device indices, in the order given.
	GPUs []int
}

// String renders the device the way the framework expects it: "cpu", "mps" or "0,1".
func (d Device) String() string {
	if d.Kind != DeviceCUDA {
		return string(d.Kind)
	}
	ids := make([]string, len(d.GPUs))
	for i, g := range d.GPUs {
		ids[i] = strconv.Itoa(g)
	}
	return strings.Join(ids, ",")
}

// ParseDevice accepts "cpu", "mps", a CUDA index ("0"), a list ("0,1") or "cuda:N".
//
// Arguments:
//   - specifier: The device specifier.
//
// Returns:
//   - Device: The parsed device.
//   - error: A *common.ConfigError for any other specifier, so a bad device fails before the
//     framework starts.
func ParseDevice(specifier string) (Device, error) {
	s := strings.ToLower(strings.TrimSpace(specifier))
	bad := func(reason string) (Device, error) {
		return Device{}, &common.ConfigError{
			Field: "train.device",
			Err:   errors.Errorf("invalid device %q: %s", specifier, reason),
		}
	}

	switch s {
	case "":
		return bad("empty")
	case "cpu":
		return Device{Kind: DeviceCPU}, nil
	case "mps":
		return Device{Kind: DeviceMPS}, nil
	}

	s = strings.TrimPrefix(s, "cuda:")
	seen := map[int]bool{}
	var gpus []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return bad("expected cpu, mps or CUDA indices")
		}
		if id < 0 {
			return bad("negative CUDA index")
		}
		if seen[id] {
			return bad(fmt.Sprintf("CUDA index %d listed twice", id))
		}
		seen[id] = true
		gpus = append(gpus, id)
	}
	return Device{Kind: DeviceCUDA, GPUs: gpus}, nil
}

// HostInfo describes the machine a CPU run executes on.
type HostInfo struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	AVX512        bool
	// TotalMemory and AvailableMemory are in bytes, zero when unknown.
	TotalMemory     uint64
	AvailableMemory uint64
}

// ProbeHost reports the CPU features and memory that bound a CPU training run.
func ProbeHost() HostInfo {
	info := HostInfo{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:        cpuid.CPU.Supports(cpuid.AVX512F),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
		info.AvailableMemory = vm.Available
	}
	return info
}
