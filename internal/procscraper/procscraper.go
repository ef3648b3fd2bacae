// Package procscraper performs the four fixed-path /proc reads the
// aggregator needs once per tick for system-wide totals (spec §4.D):
// /proc/stat, /proc/meminfo, /proc/loadavg, /proc/uptime. Each read is
// independent; a failing read leaves its portion of the totals at its
// previous value and increments an error counter (spec §7 kind 3).
package procscraper

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/DieracDelta/bpftop/internal/domain"
)

const (
	statPath     = "/proc/stat"
	meminfoPath  = "/proc/meminfo"
	loadavgPath  = "/proc/loadavg"
	uptimePath   = "/proc/uptime"
)

// Scraper reads the four fixed paths into a domain.SystemTotals, retaining
// the previous value for any portion whose read fails this tick.
type Scraper struct {
	last domain.SystemTotals

	StatErrors    uint64
	MeminfoErrors uint64
	LoadavgErrors uint64
	UptimeErrors  uint64
}

// New returns a Scraper seeded with zero totals; the first tick's failed
// reads (if any) report zero rather than a stale previous value.
func New() *Scraper {
	return &Scraper{}
}

// Scrape performs the four reads and returns the resulting totals. Errors
// from individual reads are counted but never returned: per spec §4.D, a
// failing read is a per-tick transient, not fatal to the tick.
func (s *Scraper) Scrape() domain.SystemTotals {
	totals := s.last

	if agg, perCPU, err := readStat(); err == nil {
		totals.Aggregate = agg
		totals.PerCPUTicks = perCPU
	} else {
		s.StatErrors++
	}

	if mem, err := readMeminfo(); err == nil {
		totals.MemTotalBytes = mem.MemTotalBytes
		totals.MemFreeBytes = mem.MemFreeBytes
		totals.MemAvailableBytes = mem.MemAvailableBytes
		totals.MemBuffersBytes = mem.MemBuffersBytes
		totals.MemCachedBytes = mem.MemCachedBytes
		totals.SwapTotalBytes = mem.SwapTotalBytes
		totals.SwapUsedBytes = mem.SwapUsedBytes
		totals.ZramUsedBytes = mem.ZramUsedBytes
	} else {
		s.MeminfoErrors++
	}

	if l1, l5, l15, err := readLoadavg(); err == nil {
		totals.Load1, totals.Load5, totals.Load15 = l1, l5, l15
	} else {
		s.LoadavgErrors++
	}

	if up, err := readUptime(); err == nil {
		totals.UptimeSeconds = up
	} else {
		s.UptimeErrors++
	}

	s.last = totals
	return totals
}

func readStat() (domain.CPUTicks, []domain.CPUTicks, error) {
	f, err := os.Open(statPath)
	if err != nil {
		return domain.CPUTicks{}, nil, fmt.Errorf("open %s: %w", statPath, err)
	}
	defer f.Close()

	var (
		agg    domain.CPUTicks
		perCPU []domain.CPUTicks
		haveAgg bool
	)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			continue
		}
		ticks, err := parseCPUTicks(fields[1:])
		if err != nil {
			continue
		}
		if fields[0] == "cpu" {
			agg = ticks
			haveAgg = true
			continue
		}
		perCPU = append(perCPU, ticks)
	}
	if err := sc.Err(); err != nil {
		return domain.CPUTicks{}, nil, fmt.Errorf("scan %s: %w", statPath, err)
	}
	if !haveAgg {
		return domain.CPUTicks{}, nil, fmt.Errorf("%s: no aggregate cpu line", statPath)
	}
	return agg, perCPU, nil
}

func parseCPUTicks(fields []string) (domain.CPUTicks, error) {
	vals := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return domain.CPUTicks{}, err
		}
		vals[i] = v
	}
	get := func(i int) uint64 {
		if i < len(vals) {
			return vals[i]
		}
		return 0
	}
	return domain.CPUTicks{
		User: get(0), Nice: get(1), System: get(2), Idle: get(3),
		IOWait: get(4), IRQ: get(5), SoftIRQ: get(6), Steal: get(7),
	}, nil
}

type meminfoTotals struct {
	MemTotalBytes, MemFreeBytes, MemAvailableBytes uint64
	MemBuffersBytes, MemCachedBytes                uint64
	SwapTotalBytes, SwapUsedBytes, ZramUsedBytes    uint64
}

func readMeminfo() (meminfoTotals, error) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return meminfoTotals{}, fmt.Errorf("open %s: %w", meminfoPath, err)
	}
	defer f.Close()

	fields := map[string]uint64{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		valFields := strings.Fields(parts[1])
		if len(valFields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(valFields[0], 10, 64)
		if err != nil {
			continue
		}
		// /proc/meminfo reports kB regardless of locale or unit suffix present.
		fields[key] = v * 1024
	}
	if err := sc.Err(); err != nil {
		return meminfoTotals{}, fmt.Errorf("scan %s: %w", meminfoPath, err)
	}

	swapTotal := fields["SwapTotal"]
	swapFree := fields["SwapFree"]
	var swapUsed uint64
	if swapTotal > swapFree {
		swapUsed = swapTotal - swapFree
	}

	return meminfoTotals{
		MemTotalBytes:     fields["MemTotal"],
		MemFreeBytes:      fields["MemFree"],
		MemAvailableBytes: fields["MemAvailable"],
		MemBuffersBytes:   fields["Buffers"],
		MemCachedBytes:    fields["Cached"],
		SwapTotalBytes:    swapTotal,
		SwapUsedBytes:     swapUsed,
		// Zswap, not zram: see domain.SystemTotals.ZramUsedBytes.
		ZramUsedBytes: fields["Zswap"],
	}, nil
}

func readLoadavg() (l1, l5, l15 float64, err error) {
	data, err := os.ReadFile(loadavgPath)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("open %s: %w", loadavgPath, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("%s: unexpected format", loadavgPath)
	}
	l1, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	l5, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	l15, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return l1, l5, l15, nil
}

func readUptime() (float64, error) {
	data, err := os.ReadFile(uptimePath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", uptimePath, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, fmt.Errorf("%s: unexpected format", uptimePath)
	}
	return strconv.ParseFloat(fields[0], 64)
}
