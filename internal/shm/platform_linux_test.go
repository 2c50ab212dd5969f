//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shm-atomic/pkg/atomics"
)

func testRegionName(t *testing.T) string {
	name := fmt.Sprintf("shm-atomic-test-%d-%s", os.Getpid(), t.Name())
	t.Cleanup(func() { _ = RemoveRegion(name) })
	return name
}

func TestMapAnonymousRegion(t *testing.T) {
	ctx := context.Background()
	r, err := MapRegion(ctx, MapOptions{Size: 4096})
	require.NoError(t, err)
	assert.Equal(t, 4096, r.Size())

	ref, err := r.Uint64At(64)
	require.NoError(t, err)
	ref.Store(11, atomics.OrderRelease)
	assert.Equal(t, uint64(12), ref.Add(1, atomics.OrderAcqRel))

	_, err = r.Uint32At(4094)
	assert.True(t, errors.Is(err, atomics.ErrOutOfRange))

	require.NoError(t, UnmapRegion(ctx, r))
	require.NoError(t, UnmapRegion(ctx, r))
}

func TestMapInvalidSize(t *testing.T) {
	_, err := MapRegion(context.Background(), MapOptions{Size: 0})
	assert.True(t, errors.Is(err, ErrInvalidSize))
	_, err = MapRegion(context.Background(), MapOptions{Name: "x", Size: -1, Create: true})
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestNamedRegionSharedBetweenMappings(t *testing.T) {
	if _, err := os.Stat(devShmDir); err != nil {
		t.Skipf("%s not available: %v", devShmDir, err)
	}
	ctx := context.Background()
	name := testRegionName(t)

	owner, err := MapRegion(ctx, MapOptions{Name: name, Size: 4096, Create: true})
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, owner) }()

	peer, err := MapRegion(ctx, MapOptions{Name: name})
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, peer) }()
	assert.Equal(t, 4096, peer.Size())

	w, err := owner.Uint32At(128)
	require.NoError(t, err)
	r, err := peer.Uint32At(128)
	require.NoError(t, err)

	w.Store(0xfeed, atomics.OrderRelease)
	assert.Equal(t, uint32(0xfeed), r.Load(atomics.OrderAcquire))
	assert.True(t, r.CompareAndSwap(0xfeed, 1, atomics.OrderAcqRel))
	assert.Equal(t, uint32(1), w.Load(atomics.OrderAcquire))

	_, err = MapRegion(ctx, MapOptions{Name: name, Size: 8192})
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestCreateExistingRegionKeepsSize(t *testing.T) {
	if _, err := os.Stat(devShmDir); err != nil {
		t.Skipf("%s not available: %v", devShmDir, err)
	}
	ctx := context.Background()
	name := testRegionName(t)

	owner, err := MapRegion(ctx, MapOptions{Name: name, Size: 8192, Create: true})
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, owner) }()

	_, err = MapRegion(ctx, MapOptions{Name: name, Size: 4096, Create: true})
	assert.True(t, errors.Is(err, ErrInvalidSize))
	st, err := os.Stat(devShmDir + "/" + name)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), st.Size())
	owner.Addr[6000] = 0x5a
	assert.Equal(t, byte(0x5a), owner.Addr[6000])

	same, err := MapRegion(ctx, MapOptions{Name: name, Size: 8192, Create: true})
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, same) }()
	assert.Equal(t, byte(0x5a), same.Addr[6000])
}

func TestCanCreateOnDevShm(t *testing.T) {
	//just on /dev/shm, other always return true
	assert.Equal(t, true, canCreateOnDevShm(math.MaxUint64, "sdffafds"))
	stat, err := disk.Usage(devShmDir)
	if err != nil {
		t.Skipf("%s usage not available: %v", devShmDir, err)
	}
	assert.Equal(t, true, canCreateOnDevShm(stat.Free/2, "/dev/shm/xxx"))
	assert.Equal(t, false, canCreateOnDevShm(math.MaxUint64, "/dev/shm/yyy"))
}

func TestRegistryRefCount(t *testing.T) {
	if _, err := os.Stat(devShmDir); err != nil {
		t.Skipf("%s not available: %v", devShmDir, err)
	}
	ctx := context.Background()
	name := testRegionName(t)
	opts := MapOptions{Name: name, Size: 4096, Create: true}

	a, err := Acquire(ctx, opts)
	require.NoError(t, err)
	b, err := Acquire(ctx, opts)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Contains(t, Mapped(), name)

	require.NoError(t, Release(ctx, a))
	assert.NotNil(t, b.Addr)
	require.NoError(t, Release(ctx, b))
	assert.Nil(t, b.Addr)
	assert.NotContains(t, Mapped(), name)
}

func TestRegistryMapError(t *testing.T) {
	ctx := context.Background()
	_, err := Acquire(ctx, MapOptions{Name: "shm-atomic-missing-region", Size: 64})
	require.Error(t, err)
	assert.NotContains(t, Mapped(), "shm-atomic-missing-region")
}
