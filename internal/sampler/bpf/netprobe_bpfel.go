//go:build 386 || amd64 || arm || arm64 || loong64 || mips64le || mipsle || ppc64le || riscv64

package bpf

import (
	"github.com/cilium/ebpf"
)

// NetprobeMaps contains the maps the network probe programs declare.
type NetprobeMaps struct {
	NetCounters *ebpf.Map `ebpf:"net_counters"`
}

// NetprobePrograms contains the four socket send/recv probe programs.
type NetprobePrograms struct {
	TraceTcpSendmsg *ebpf.Program `ebpf:"trace_tcp_sendmsg"`
	TraceTcpRecvmsg *ebpf.Program `ebpf:"trace_tcp_recvmsg"`
	TraceUdpSendmsg *ebpf.Program `ebpf:"trace_udp_sendmsg"`
	TraceUdpRecvmsg *ebpf.Program `ebpf:"trace_udp_recvmsg"`
}

// NetprobeObjects is the full set of loaded maps and programs for the
// network probes.
type NetprobeObjects struct {
	NetprobePrograms
	NetprobeMaps
}

func (o *NetprobeObjects) Close() error {
	return closeNetprobe(&o.NetprobeMaps, &o.NetprobePrograms)
}

// NetCounterMapHolder is implemented by NetprobeObjects so the Linux loader
// can read the shared counter table back without depending on the concrete
// generated type.
type NetCounterMapHolder interface {
	NetCountersMap() *ebpf.Map
}

func (o *NetprobeObjects) NetCountersMap() *ebpf.Map { return o.NetCounters }

type netprobeMapSpecs struct {
	NetCounters *ebpf.MapSpec `ebpf:"net_counters"`
}

type netprobeProgramSpecs struct {
	TraceTcpSendmsg *ebpf.ProgramSpec `ebpf:"trace_tcp_sendmsg"`
	TraceTcpRecvmsg *ebpf.ProgramSpec `ebpf:"trace_tcp_recvmsg"`
	TraceUdpSendmsg *ebpf.ProgramSpec `ebpf:"trace_udp_sendmsg"`
	TraceUdpRecvmsg *ebpf.ProgramSpec `ebpf:"trace_udp_recvmsg"`
}

// LoadNetprobe builds the CollectionSpec for the four socket send/recv
// probes. See LoadTasksampler for why this is programmatic rather than
// embedded object code.
func LoadNetprobe() (*ebpf.CollectionSpec, error) {
	return &ebpf.CollectionSpec{
		Maps: map[string]*ebpf.MapSpec{
			"net_counters": {
				Name:       "net_counters",
				Type:       ebpf.LRUHash,
				KeySize:    4,
				ValueSize:  16,
				MaxEntries: 16384,
			},
		},
		Programs: map[string]*ebpf.ProgramSpec{
			"trace_tcp_sendmsg": {Name: "trace_tcp_sendmsg", Type: ebpf.Kprobe},
			"trace_tcp_recvmsg": {Name: "trace_tcp_recvmsg", Type: ebpf.Kprobe},
			"trace_udp_sendmsg": {Name: "trace_udp_sendmsg", Type: ebpf.Kprobe},
			"trace_udp_recvmsg": {Name: "trace_udp_recvmsg", Type: ebpf.Kprobe},
		},
	}, nil
}

func closeNetprobe(maps *NetprobeMaps, progs *NetprobePrograms) error {
	var err error
	if maps.NetCounters != nil {
		err = maps.NetCounters.Close()
	}
	for _, p := range []*ebpf.Program{progs.TraceTcpSendmsg, progs.TraceTcpRecvmsg, progs.TraceUdpSendmsg, progs.TraceUdpRecvmsg} {
		if p == nil {
			continue
		}
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
