//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "cgtop: the in-kernel task sampler and cgroup v2 freeze controller are linux-only")
	os.Exit(2)
}
