//go:build arm64

package layout

// arm64 task_struct layout differs from amd64 past the first few common
// fields; like the amd64 table, it is not used by the sampler's C source,
// which reads these fields via BPF_CORE_READ.
func init() {
	Offsets = TaskStructOffsets{
		PID:           0x4d0,
		TGID:          0x4d4,
		RealParent:    0x458,
		Cred:          0x6b8,
		StartTime:     0x650,
		UtimeSum:      0x8c0,
		StimeSum:      0x8c8,
		MM:            0x3a8,
		MinFlt:        0x7c0,
		MajFlt:        0x7c8,
		Policy:        0x4e0,
		StaticPrio:    0x4e4,
		State:         0x18,
		Comm:          0x9d0,
		CgroupsOffset: 0xc50,
		NVCSW:         0x8d8,
		NIVCSW:        0x8e0,
	}
	Cred = CredOffsets{UID: 0x4, EUID: 0x14}
	MM = MMStructOffsets{TotalVM: 0x40, RSSStat: 0x60}
}
