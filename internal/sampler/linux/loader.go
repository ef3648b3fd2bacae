//go:build linux

// Package linux is the Linux implementation of internal/sampler/core.Loader:
// it loads the compiled task-iterator and network-probe programs with
// cilium/ebpf, drives one iteration pull per tick, and serves the shared
// per-pid network counter table back to the aggregator (spec §4.A–§4.C).
package linux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"

	"github.com/DieracDelta/bpftop/internal/sampler/bpf"
	"github.com/DieracDelta/bpftop/internal/sampler/core"
)

type probeAttachment struct {
	target string
	link   link.Link
}

type loader struct {
	logger *zap.Logger

	mu sync.Mutex

	taskObjs tasksamplerCloser
	netObjs  netprobeCloser

	iter       *link.Iter
	ringReader *ringbuf.Reader

	probes []probeAttachment
	status core.ProbeStatus

	loaded bool
}

// tasksamplerCloser and netprobeCloser are the subset of the bpf2go object
// structs the loader needs; kept as interfaces so tests can substitute
// fakes without a real kernel.
type tasksamplerCloser interface {
	io.Closer
}

type netprobeCloser interface {
	io.Closer
}

// New returns a Loader bound to the Linux cilium/ebpf runtime.
func New(logger *zap.Logger) core.Loader {
	return &loader{logger: logger}
}

func (l *loader) Load(ctx context.Context, cfg core.Config) (core.ProbeStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return core.ProbeStatus{}, core.ErrAlreadyLoaded
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return core.ProbeStatus{}, fmt.Errorf("%w: %s", core.ErrMemlockRaiseFailed, err)
	}

	taskSpec, err := bpf.LoadTasksampler()
	if err != nil {
		return core.ProbeStatus{}, fmt.Errorf("load task sampler spec: %w", err)
	}

	var taskObjs bpf.TasksamplerObjects
	if err := taskSpec.LoadAndAssign(&taskObjs, nil); err != nil {
		return core.ProbeStatus{}, fmt.Errorf("load task sampler program: %w", err)
	}
	l.taskObjs = &taskObjs

	iter, err := link.AttachIter(link.IterOptions{Program: taskObjs.DumpTask})
	if err != nil {
		taskObjs.Close()
		return core.ProbeStatus{}, core.AttachError{ProgramName: "dump_task", AttachTarget: "iter/task", Cause: err}
	}
	l.iter = iter

	l.status = core.ProbeStatus{}
	if cfg.EnableNetworkProbes {
		if err := l.attachNetworkProbesLocked(); err != nil {
			l.logger.Warn("network probes failed to attach; network rates will read zero", zap.Error(err))
		}
	}

	l.loaded = true
	return l.status, nil
}

func (l *loader) attachNetworkProbesLocked() error {
	netSpec, err := bpf.LoadNetprobe()
	if err != nil {
		return fmt.Errorf("load net probe spec: %w", err)
	}

	var netObjs bpf.NetprobeObjects
	if err := netSpec.LoadAndAssign(&netObjs, nil); err != nil {
		return fmt.Errorf("load net probe programs: %w", err)
	}
	l.netObjs = &netObjs

	targets := []struct {
		name string
		prog *ebpf.Program
		flag *bool
	}{
		{"tcp_sendmsg", netObjs.TraceTcpSendmsg, &l.status.TCPSendAttached},
		{"tcp_recvmsg", netObjs.TraceTcpRecvmsg, &l.status.TCPRecvAttached},
		{"udp_sendmsg", netObjs.TraceUdpSendmsg, &l.status.UDPSendAttached},
		{"udp_recvmsg", netObjs.TraceUdpRecvmsg, &l.status.UDPRecvAttached},
	}

	l.probes = l.probes[:0]
	for _, t := range targets {
		lk, err := link.Kprobe(t.name, t.prog, nil)
		if err != nil {
			l.status.Errors = append(l.status.Errors, core.AttachError{ProgramName: t.name, AttachTarget: t.name, Cause: err})
			continue
		}
		*t.flag = true
		l.probes = append(l.probes, probeAttachment{target: t.name, link: lk})
	}

	if !l.status.AnyAttached() {
		netObjs.Close()
		l.netObjs = nil
		return fmt.Errorf("no network probe attached")
	}
	return nil
}

func (l *loader) detachNetworkProbesLocked() {
	for _, p := range l.probes {
		_ = p.link.Close()
	}
	l.probes = nil
	if l.netObjs != nil {
		_ = l.netObjs.Close()
		l.netObjs = nil
	}
	l.status = core.ProbeStatus{}
}

func (l *loader) SetNetworkProbesEnabled(ctx context.Context, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return core.ErrNotLoaded
	}

	currentlyOn := l.status.AnyAttached()
	if enabled == currentlyOn {
		return nil
	}

	if enabled {
		return l.attachNetworkProbesLocked()
	}
	l.detachNetworkProbesLocked()
	return nil
}

// Pull opens a fresh iteration handle, drains every record it produces into
// the caller's buffer, and closes the handle. One Pull is one iteration
// pass over every currently-live task (spec §4.A, §4.C).
func (l *loader) Pull(ctx context.Context) (core.PullResult, error) {
	l.mu.Lock()
	iter := l.iter
	l.mu.Unlock()

	if iter == nil {
		return core.PullResult{}, core.ErrNotLoaded
	}

	r, err := iter.Open()
	if err != nil {
		return core.PullResult{}, fmt.Errorf("open iteration handle: %w", err)
	}
	defer r.Close()

	result := core.PullResult{}
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			result.Partial = true
			return result, nil
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			rec, decErr := decodeRecord(buf[:n])
			if decErr == nil {
				result.Records = append(result.Records, rec)
			}
		}
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			result.Partial = true
			return result, fmt.Errorf("read iteration stream: %w", err)
		}
	}
}

func (l *loader) ReadNetCounters() ([]core.NetCounterEntry, error) {
	l.mu.Lock()
	netObjs := l.netObjs
	l.mu.Unlock()

	if netObjs == nil {
		return nil, nil
	}

	m, ok := netObjs.(bpf.NetCounterMapHolder)
	if !ok {
		return nil, nil
	}
	table := m.NetCountersMap()

	var (
		entries []core.NetCounterEntry
		key     uint32
		val     struct{ Sent, Received uint64 }
	)
	iter := table.Iterate()
	for iter.Next(&key, &val) {
		entries = append(entries, core.NetCounterEntry{PID: key, BytesSent: val.Sent, BytesReceived: val.Received})
	}
	if err := iter.Err(); err != nil {
		return entries, core.MapError{MapName: "net_counters", Operation: "iterate", Cause: err}
	}
	return entries, nil
}

// DeleteNetCounter removes pid's entry from the shared counter table; a
// missing entry (already evicted by the kernel's LRU policy) is not an error.
func (l *loader) DeleteNetCounter(pid uint32) error {
	l.mu.Lock()
	netObjs := l.netObjs
	l.mu.Unlock()

	if netObjs == nil {
		return nil
	}
	m, ok := netObjs.(bpf.NetCounterMapHolder)
	if !ok {
		return nil
	}

	key := pid
	if err := m.NetCountersMap().Delete(&key); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		return core.MapError{MapName: "net_counters", Operation: "delete", Cause: err}
	}
	return nil
}

func (l *loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return core.ErrNotLoaded
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.detachNetworkProbesLocked()

	if l.ringReader != nil {
		record(l.ringReader.Close())
	}
	if l.iter != nil {
		record(l.iter.Close())
	}
	if l.taskObjs != nil {
		record(l.taskObjs.Close())
	}

	l.loaded = false
	return firstErr
}
