package lightsched

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lightsched/lightsched-go/internal/model"
)

// ResourceClaim is a requested (job, task) or advertised (node) quantity of
// resources. A claim whose CPU, frequency, GPU count and memory are all zero
// is null: the scheduler applies its default.
type ResourceClaim struct {
	NumCPUs   float64           `json:"num_cpus,omitempty"`   // fractional cores
	CPUFreq   int               `json:"cpu_freq,omitempty"`   // minimum clock in MHz
	Memory    int               `json:"memory,omitempty"`     // megabytes
	NumGPUs   int               `json:"num_gpus,omitempty"`   // cards
	GPUMemory int               `json:"gpu_memory,omitempty"` // gigabytes per card
	CUDA      int               `json:"cuda,omitempty"`       // minimum capability, e.g. 1020
	Others    map[string]string `json:"others,omitempty"`
}

func (r ResourceClaim) IsNull() bool {
	return r.NumCPUs == 0 && r.CPUFreq == 0 && r.NumGPUs == 0 && r.Memory == 0
}

func (r ResourceClaim) String() string {
	if r.IsNull() {
		return "default"
	}

	parts := make([]string, 0, 4)
	if r.NumCPUs > 0 || r.CPUFreq > 0 {
		cpu := strconv.FormatFloat(r.NumCPUs, 'f', -1, 64) + " cpu"
		if r.CPUFreq > 0 {
			cpu += fmt.Sprintf(" @%dMHz", r.CPUFreq)
		}
		parts = append(parts, cpu)
	}
	if r.Memory > 0 {
		parts = append(parts, fmt.Sprintf("%dMi", r.Memory))
	}
	if r.NumGPUs > 0 {
		gpu := fmt.Sprintf("%d gpu", r.NumGPUs)
		if r.GPUMemory > 0 {
			gpu += fmt.Sprintf(" x %dGi", r.GPUMemory)
		}
		parts = append(parts, gpu)
	}
	if len(r.Others) > 0 {
		keys := make([]string, 0, len(r.Others))
		for k := range r.Others {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+r.Others[k])
		}
	}
	return strings.Join(parts, ", ")
}

// toWire encodes the claim into the nested resource schema. Members whose
// quantity is zero are left out; a null claim is not sent at all.
func (r ResourceClaim) toWire() *model.Resources {
	if r.IsNull() {
		return nil
	}

	res := &model.Resources{
		Cpu: &model.Cpu{
			Cores: model.FlexString(strconv.FormatFloat(r.NumCPUs, 'f', 1, 64)),
		},
	}
	if r.CPUFreq > 0 {
		res.Cpu.Frequency = model.FlexString(strconv.FormatFloat(float64(r.CPUFreq)/1000, 'f', 1, 64) + "GHz")
	}
	if r.Memory > 0 {
		res.Memory = model.FlexString(strconv.Itoa(r.Memory) + "Mi")
	}
	if r.NumGPUs > 0 || r.GPUMemory > 0 || r.CUDA > 0 {
		res.Gpu = &model.Gpu{}
		if r.NumGPUs > 0 {
			res.Gpu.Cards = model.FlexString(strconv.Itoa(r.NumGPUs))
		}
		if r.GPUMemory > 0 {
			res.Gpu.Memory = model.FlexString(strconv.Itoa(r.GPUMemory) + "Gi")
		}
		if r.CUDA > 0 {
			res.Gpu.Cuda = model.FlexInt(r.CUDA)
		}
	}
	if len(r.Others) > 0 {
		res.Others = make(map[string]model.FlexString, len(r.Others))
		for k, v := range r.Others {
			res.Others[k] = model.FlexString(v)
		}
	}
	return res
}

// resourceClaimFromWire is the numeric inverse of toWire. Absent or
// unparsable members decode to zero.
func resourceClaimFromWire(res *model.Resources) ResourceClaim {
	var r ResourceClaim
	if res == nil {
		return r
	}

	if res.Cpu != nil {
		r.NumCPUs = parseDecimal(string(res.Cpu.Cores), "")
		r.CPUFreq = parseFrequency(string(res.Cpu.Frequency))
	}
	r.Memory = int(math.Round(parseDecimal(string(res.Memory), "Mi")))
	if res.Gpu != nil {
		r.NumGPUs = int(math.Round(parseDecimal(string(res.Gpu.Cards), "")))
		r.GPUMemory = int(math.Round(parseDecimal(string(res.Gpu.Memory), "Gi")))
		r.CUDA = res.Gpu.Cuda.Int()
	}
	if len(res.Others) > 0 {
		r.Others = make(map[string]string, len(res.Others))
		for k, v := range res.Others {
			r.Others[k] = string(v)
		}
	}
	return r
}

func parseDecimal(s string, unit string) float64 {
	s = strings.TrimSpace(s)
	if unit != "" {
		s = strings.TrimSpace(strings.TrimSuffix(s, unit))
	}
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseFrequency reads "2.4GHz" as 2400 MHz. A bare number or a "MHz"
// suffix is read as megahertz.
func parseFrequency(s string) int {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "GHz"):
		return int(math.Round(parseDecimal(s, "GHz") * 1000))
	case strings.HasSuffix(s, "MHz"):
		return int(math.Round(parseDecimal(s, "MHz")))
	default:
		return int(math.Round(parseDecimal(s, "")))
	}
}
