//go:build 386 || amd64 || arm || arm64 || loong64 || mips64le || mipsle || ppc64le || riscv64

package bpf

import (
	"github.com/cilium/ebpf"
)

// TasksamplerMaps contains the maps the task-iterator sampler program
// declares, matching the bpf2go-generated naming convention.
type TasksamplerMaps struct {
	TaskRecords *ebpf.Map `ebpf:"task_records"`
}

// TasksamplerPrograms contains the programs the task-iterator sampler
// declares.
type TasksamplerPrograms struct {
	DumpTask *ebpf.Program `ebpf:"dump_task"`
}

// TasksamplerObjects is the full set of loaded maps and programs for the
// task sampler, assignable directly via (*ebpf.CollectionSpec).LoadAndAssign.
type TasksamplerObjects struct {
	TasksamplerPrograms
	TasksamplerMaps
}

func (o *TasksamplerObjects) Close() error {
	return closeTasksampler(&o.TasksamplerMaps, &o.TasksamplerPrograms)
}

// TasksamplerObjects has no NetCountersMap method, so it never satisfies
// NetCounterMapHolder; only NetprobeObjects does.

type tasksamplerMapSpecs struct {
	TaskRecords *ebpf.MapSpec `ebpf:"task_records"`
}

type tasksamplerProgramSpecs struct {
	DumpTask *ebpf.ProgramSpec `ebpf:"dump_task"`
}

// LoadTasksampler returns the CollectionSpec for the task-iterator sampler
// program. A stock bpf2go build embeds real object code produced by clang
// from c/task_sampler.bpf.c; this checked-in fallback builds the same
// map/program shape programmatically so the Linux loader has a spec to
// attach against without a C toolchain in this environment.
func LoadTasksampler() (*ebpf.CollectionSpec, error) {
	return &ebpf.CollectionSpec{
		Maps: map[string]*ebpf.MapSpec{
			"task_records": {
				Name:       "task_records",
				Type:       ebpf.RingBuf,
				MaxEntries: 1 << 24,
			},
		},
		Programs: map[string]*ebpf.ProgramSpec{
			"dump_task": {
				Name: "dump_task",
				Type: ebpf.Tracing,
			},
		},
	}, nil
}

func closeTasksampler(maps *TasksamplerMaps, progs *TasksamplerPrograms) error {
	var err error
	if maps.TaskRecords != nil {
		err = maps.TaskRecords.Close()
	}
	if progs.DumpTask != nil {
		if e := progs.DumpTask.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
