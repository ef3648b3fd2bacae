//go:build linux

package linux

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/DieracDelta/bpftop/internal/domain"
	"github.com/DieracDelta/bpftop/internal/sampler/core"
)

// wireRecord is the exact little-endian layout the kernel-side sampler
// program writes into the ring buffer (spec §3, §4.A). Field order and
// sizes here MUST match internal/sampler/bpf/c/task_sampler.h byte for
// byte.
type wireRecord struct {
	PID, TGID, PPID uint32
	UID, EUID       uint32
	_               uint32 // padding to keep StartTicks 8-byte aligned
	StartTicks      uint64
	UserTicks       uint64
	SystemTicks     uint64
	RSSPages        uint64
	VSizePages      uint64
	MinorFaults     uint64
	MajorFaults     uint64
	NumThreads      int32
	Nice            int8
	Policy          uint8
	State           uint8
	_               uint8 // padding to keep CgroupID 8-byte aligned
	CgroupID        uint64
	Comm            [16]byte
	Cmdline         [256]byte
	VoluntaryCtxSwitches   uint64
	InvoluntaryCtxSwitches uint64
	BlockIOReadBytes       uint64
	BlockIOWriteBytes      uint64
	Flags                  uint32
	_                       [4]byte // padding to a multiple of 8
}

var hostByteOrder = nativeEndian()

func nativeEndian() binary.ByteOrder {
	var buf [2]byte
	*(*uint16)(unsafe.Pointer(&buf[0])) = 0xABCD
	if buf[0] == 0xCD {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// decodeRecord parses one ring-buffer dequeue into a core.RawRecord (spec
// §3 "one record per dequeue from the output stream").
func decodeRecord(data []byte) (core.RawRecord, error) {
	var w wireRecord
	if err := binary.Read(bytes.NewReader(data), hostByteOrder, &w); err != nil {
		return core.RawRecord{}, core.RingBufferError{Operation: "decode record", Cause: err}
	}

	return core.RawRecord{
		PID: w.PID, TGID: w.TGID, PPID: w.PPID,
		UID: w.UID, EUID: w.EUID,
		StartTicks:  w.StartTicks,
		UserTicks:   w.UserTicks,
		SystemTicks: w.SystemTicks,
		RSSPages:    w.RSSPages,
		VSizePages:  w.VSizePages,
		MinorFaults: w.MinorFaults,
		MajorFaults: w.MajorFaults,
		NumThreads:  w.NumThreads,
		Nice:        w.Nice,
		Policy:      w.Policy,
		CgroupID:    w.CgroupID,
		Comm:        w.Comm,
		Cmdline:     w.Cmdline,
		State:       w.State,
		VoluntaryCtxSwitches:   w.VoluntaryCtxSwitches,
		InvoluntaryCtxSwitches: w.InvoluntaryCtxSwitches,
		BlockIOReadBytes:       w.BlockIOReadBytes,
		BlockIOWriteBytes:      w.BlockIOWriteBytes,
		Flags:                  w.Flags,
	}, nil
}

// ToTaskRecord turns a decoded RawRecord into the domain type the
// aggregator works with, applying the comm/cmdline truncation rule from
// spec §4.A: a field with no NUL before the bound is truncated, not an
// error.
func ToTaskRecord(r core.RawRecord) domain.TaskRecord {
	comm, commTrunc := cStringBounded(r.Comm[:])
	cmdline, cmdlineTrunc := cStringBounded(r.Cmdline[:])

	flags := domain.RecordFlags(r.Flags)
	if commTrunc {
		flags |= domain.FlagCommTruncated
	}
	if cmdlineTrunc {
		flags |= domain.FlagCmdlineTruncated
	}

	return domain.TaskRecord{
		PID: r.PID, TGID: r.TGID, PPID: r.PPID,
		UID: r.UID, EUID: r.EUID,
		StartTicks:  r.StartTicks,
		UserTicks:   r.UserTicks,
		SystemTicks: r.SystemTicks,
		RSSPages:    r.RSSPages,
		VSizePages:  r.VSizePages,
		MinorFaults: r.MinorFaults,
		MajorFaults: r.MajorFaults,
		NumThreads:  r.NumThreads,
		Nice:        int8(r.Nice),
		Policy:      domain.SchedPolicy(r.Policy),
		CgroupID:    r.CgroupID,
		Comm:        comm,
		Cmdline:     cmdline,
		State:       domain.TaskState(r.State),
		VoluntaryCtxSwitches:   r.VoluntaryCtxSwitches,
		InvoluntaryCtxSwitches: r.InvoluntaryCtxSwitches,
		BlockIOReadBytes:       r.BlockIOReadBytes,
		BlockIOWriteBytes:      r.BlockIOWriteBytes,
		Flags:                  flags,
	}
}

// cStringBounded returns the string up to the first NUL, or the whole
// bounded buffer (and true) if no NUL appears before the bound.
func cStringBounded(b []byte) (string, bool) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i]), false
	}
	return string(b), true
}
