// Package bpf holds the bpf2go-generated bindings for the kernel-side
// sampler and network probe programs.
package bpf

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -target bpf" -target amd64,arm64 tasksampler c/task_sampler.bpf.c -- -I./c
//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -target bpf" -target amd64,arm64 netprobe c/net_probe.bpf.c -- -I./c
