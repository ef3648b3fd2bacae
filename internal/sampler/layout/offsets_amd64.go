//go:build amd64

package layout

// Offsets below are hard-coded for a generic 6.x x86-64 task_struct layout
// and cover the fields the kernel-side sampler program's C source
// (internal/sampler/bpf/c/task_sampler.bpf.c) reads. That source reads them
// via BPF_CORE_READ and does not use this table.
func init() {
	Offsets = TaskStructOffsets{
		PID:           0x4e8,
		TGID:          0x4ec,
		RealParent:    0x470,
		Cred:          0x6d0,
		StartTime:     0x668,
		UtimeSum:      0x8d8,
		StimeSum:      0x8e0,
		MM:            0x3c0,
		MinFlt:        0x7d8,
		MajFlt:        0x7e0,
		Policy:        0x4f8,
		StaticPrio:    0x4fc,
		State:         0x18,
		Comm:          0x9e8,
		CgroupsOffset: 0xc68,
		NVCSW:         0x8f0,
		NIVCSW:        0x8f8,
	}
	Cred = CredOffsets{UID: 0x4, EUID: 0x14}
	MM = MMStructOffsets{TotalVM: 0x40, RSSStat: 0x60}
}
