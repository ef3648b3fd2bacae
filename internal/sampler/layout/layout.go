// Package layout holds a compile-time table of field offsets into the
// kernel's task_struct, mm_struct, and related descriptors, selected by an
// architecture build tag. Nothing in the module reads this table: the
// kernel-side sampler source (internal/sampler/bpf/c/task_sampler.bpf.c)
// reads these fields through BPF_CORE_READ, which relocates them against the
// running kernel's BTF at load time.
package layout

// TaskStructOffsets names every task_struct field the sampler program
// reads. Values are filled in by the arch-specific offsets_*.go file
// selected at build time.
type TaskStructOffsets struct {
	PID, TGID, RealParent uintptr
	Cred                  uintptr // -> uid/euid via cred_struct offsets below
	StartTime             uintptr
	UtimeSum, StimeSum    uintptr // se.sum_exec_runtime split is kernel-version specific; sampler reads utime/stime directly
	MM                    uintptr
	MinFlt, MajFlt        uintptr
	Policy                uintptr
	StaticPrio            uintptr
	State                 uintptr
	Comm                  uintptr
	CgroupsOffset         uintptr // task_struct.cgroups -> css_set -> dfl_cgrp -> kn->id
	NVCSW, NIVCSW         uintptr
}

// CredOffsets names the cred_struct fields the sampler reads through
// task_struct.cred.
type CredOffsets struct {
	UID, EUID uintptr
}

// MMStructOffsets names the mm_struct fields the sampler reads through
// task_struct.mm.
type MMStructOffsets struct {
	TotalVM  uintptr // pages
	RSSStat  uintptr // per-member rss_stat array base
}

// Offsets is the active offset table for the architecture this binary was
// built for, populated by init() in the arch-specific file compiled in by
// the matching build tag.
var Offsets TaskStructOffsets

// Cred is the active cred_struct offset table.
var Cred CredOffsets

// MM is the active mm_struct offset table.
var MM MMStructOffsets
