package hwinfo

import (
	"errors"

	procinfo "github.com/c9s/goprocinfo/linux"
	"go.uber.org/zap"
)

const pathCPUInfo = "/proc/cpuinfo"

type procinfoProvider struct {
	path   string
	cached *CPU
}

func (p *procinfoProvider) CPU() (cpu CPU, e error) {
	if p.cached != nil {
		return *p.cached, nil
	}

	cpuInfo, e := procinfo.ReadCPUInfo(p.path)
	if e != nil {
		logger.Warn("cannot read CPU info", zap.String("path", p.path), zap.Error(e))
		return cpu, e
	}
	if len(cpuInfo.Processors) == 0 {
		return cpu, errors.New("no processor listed")
	}

	cpu.Model = cpuInfo.Processors[0].ModelName
	cpu.LogicalCores = len(cpuInfo.Processors)
	cpu.Flags = cpuInfo.Processors[0].Flags
	for _, processor := range cpuInfo.Processors[1:] {
		cpu.Flags = intersect(cpu.Flags, processor.Flags)
	}

	p.cached = &cpu
	return cpu, nil
}

func intersect(a, b []string) (list []string) {
	set := map[string]bool{}
	for _, s := range b {
		set[s] = true
	}
	for _, s := range a {
		if set[s] {
			list = append(list, s)
		}
	}
	return list
}
