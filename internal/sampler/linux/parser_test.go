//go:build linux

package linux

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DieracDelta/bpftop/internal/domain"
)

func encodeWireRecord(t *testing.T, w wireRecord) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, hostByteOrder, w))
	return buf.Bytes()
}

func TestDecodeRecordRoundTrip(t *testing.T) {
	w := wireRecord{
		PID: 1234, TGID: 1234, PPID: 1,
		UID: 1000, EUID: 1000,
		StartTicks:  55555,
		UserTicks:   100,
		SystemTicks: 50,
		RSSPages:    4096,
		VSizePages:  8192,
		NumThreads:  1,
		Nice:        0,
		Policy:      0,
		State:       'R',
	}
	copy(w.Comm[:], "myapp")
	copy(w.Cmdline[:], "/usr/bin/myapp --flag")

	raw, err := decodeRecord(encodeWireRecord(t, w))
	require.NoError(t, err)

	assert.Equal(t, uint32(1234), raw.PID)
	assert.Equal(t, uint64(55555), raw.StartTicks)

	rec := ToTaskRecord(raw)
	assert.Equal(t, "myapp", rec.Comm)
	assert.Equal(t, "/usr/bin/myapp --flag", rec.Cmdline)
	assert.False(t, rec.Truncated())
	assert.Equal(t, domain.TaskState('R'), rec.State)
}

func TestDecodeRecordTruncatedComm(t *testing.T) {
	w := wireRecord{PID: 1, TGID: 1}
	longName := bytes.Repeat([]byte("x"), len(w.Comm))
	copy(w.Comm[:], longName)

	raw, err := decodeRecord(encodeWireRecord(t, w))
	require.NoError(t, err)

	rec := ToTaskRecord(raw)
	assert.True(t, rec.Flags.Has(domain.FlagCommTruncated))
	assert.True(t, rec.Truncated())
}

func TestIsThread(t *testing.T) {
	rec := domain.TaskRecord{PID: 100, TGID: 99}
	assert.True(t, rec.IsThread())

	rec2 := domain.TaskRecord{PID: 100, TGID: 100}
	assert.False(t, rec2.IsThread())
}
