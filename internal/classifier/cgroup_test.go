//go:build linux

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContainerID(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "docker_scope",
			path: "/system.slice/docker-abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789.scope",
			want: "abcdef012345",
		},
		{
			name: "cri_containerd_scope",
			path: "/kubepods.slice/cri-containerd-deadbeefdeadbeefdeadbeefdeadbeef.scope",
			want: "deadbeefdead",
		},
		{
			name: "libpod_scope",
			path: "/machine.slice/libpod-cafebabecafebabecafebabecafebabe.scope",
			want: "cafebabecafe",
		},
		{
			name: "no_container",
			path: "/system.slice/myapp.service",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractContainerID(tt.path))
		})
	}
}

func TestExtractServiceUnit(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "simple_service",
			path: "/system.slice/myapp.service",
			want: "myapp.service",
		},
		{
			name: "innermost_timer_wins",
			path: "/system.slice/myapp.service/run-1234.timer",
			want: "run-1234.timer",
		},
		{
			name: "deepest_wins_on_tie",
			path: "/system.slice/outer.slice/inner.slice",
			want: "inner.slice",
		},
		{
			name: "session_scope",
			path: "/user.slice/user-1000.slice/session-1.scope",
			want: "session-1.scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractServiceUnit(tt.path))
		})
	}
}

func TestShortIDTruncatesTo12Chars(t *testing.T) {
	assert.Equal(t, "abcdef012345", shortID("abcdef0123456789abcdef0123456789"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestClassifyPathAssignsSyntheticIDForGenericContainer(t *testing.T) {
	cls := classifyPath("/machine.slice/machine-nspawn-foo.scope")
	assert.NotEmpty(t, cls.Container)
	assert.Contains(t, cls.Container, "machine-")

	// two resolutions of distinct unmatched paths under machine.slice get
	// distinct synthetic ids since no stable hex id is recoverable.
	other := classifyPath("/machine.slice/machine-nspawn-bar.scope")
	assert.NotEqual(t, cls.Container, other.Container)
}

func TestResolverCachesByID(t *testing.T) {
	r := &Resolver{cgroupRoot: "/sys/fs/cgroup", evictAfterTicks: defaultEvictAfterTicks, cache: make(map[uint64]cacheEntry)}

	first := r.Resolve(42, "/system.slice/myapp.service", 1)
	assert.Equal(t, uint64(1), r.CacheMisses())
	assert.Equal(t, "myapp.service", first.ServiceUnit)

	// a second call with the same id and a bogus path should still return
	// the cached classification without reparsing.
	second := r.Resolve(42, "/totally/different/path", 2)
	assert.Equal(t, uint64(1), r.CacheMisses())
	assert.Equal(t, first, second)
}

func TestResolverLookupHitAndMiss(t *testing.T) {
	r := &Resolver{cgroupRoot: "/sys/fs/cgroup", evictAfterTicks: defaultEvictAfterTicks, cache: make(map[uint64]cacheEntry)}

	_, ok := r.Lookup(42, 1)
	assert.False(t, ok, "nothing resolved yet")

	resolved := r.Resolve(42, "/system.slice/myapp.service", 1)
	assert.Equal(t, uint64(1), r.CacheMisses())

	hit, ok := r.Lookup(42, 2)
	require.True(t, ok)
	assert.Equal(t, resolved, hit)
	assert.Equal(t, uint64(1), r.CacheMisses(), "a Lookup hit must not count as a miss")
}

func TestResolverEvictsStaleEntries(t *testing.T) {
	r := &Resolver{cgroupRoot: "/sys/fs/cgroup", evictAfterTicks: 2, cache: make(map[uint64]cacheEntry)}

	r.Resolve(1, "/system.slice/a.service", 10)
	r.Resolve(2, "/system.slice/b.service", 10)

	// entry 1 gets refreshed, entry 2 does not.
	r.Resolve(1, "/system.slice/a.service", 11)

	evicted := r.Evict(12)
	assert.Equal(t, 1, evicted)
	_, stillCached := r.cache[1]
	assert.True(t, stillCached)
	_, evictedEntry := r.cache[2]
	assert.False(t, evictedEntry)
}
