//go:build linux

package shm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

const devShmDir = "/dev/shm"

// MapRegion maps or creates a shared memory region (Linux implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Size < 0 || (opts.Size == 0 && (opts.Create || opts.Name == "")) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, opts.Size)
	}
	if opts.Name == "" {
		addr, err := unix.Mmap(-1, 0, opts.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
		if err != nil {
			return nil, fmt.Errorf("mmap anonymous: %w", err)
		}
		return &MappedRegion{Addr: addr}, nil
	}

	shmPath := filepath.Join(devShmDir, opts.Name)
	flags := unix.O_RDWR
	if opts.Create {
		if !canCreateOnDevShm(uint64(opts.Size), shmPath) {
			return nil, fmt.Errorf("%w: path:%s, size:%d", ErrNoSpace, shmPath, opts.Size)
		}
		flags |= unix.O_CREAT
	}
	fd, err := unix.Open(shmPath, flags, 0600)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	size := opts.Size
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("fstat: %w", err)
	}
	switch {
	case opts.Create && st.Size == 0:
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate: %w", err)
		}
	case opts.Create:
		// An existing region is never resized: shrinking it would fault
		// every process that already maps it.
		if st.Size != int64(size) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: %s exists with %d bytes, want %d", ErrInvalidSize, shmPath, st.Size, size)
		}
	default:
		if size == 0 {
			size = int(st.Size)
		}
		if size == 0 || int64(size) > st.Size {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrInvalidSize, shmPath, st.Size, size)
		}
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	log.Infof("mapped region path:%s size:%d create:%v", shmPath, size, opts.Create)
	return &MappedRegion{
		Addr:      addr,
		Name:      opts.Name,
		handle:    uintptr(fd),
		hasHandle: true,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	if err := unix.Munmap(region.Addr); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	region.Addr = nil
	if region.hasHandle {
		region.hasHandle = false
		if err := unix.Close(int(region.handle)); err != nil {
			log.Warnf("close region fd:%d, error:%s", region.handle, err.Error())
		}
	}
	return nil
}

// RemoveRegion unlinks a named region. Existing mappings stay valid.
func RemoveRegion(name string) error {
	if err := unix.Unlink(filepath.Join(devShmDir, name)); err != nil {
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	return nil
}

// canCreateOnDevShm reports whether size bytes fit on /dev/shm. Paths
// outside /dev/shm always return true.
func canCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, devShmDir) {
		return true
	}
	stat, err := disk.Usage(devShmDir)
	if err != nil {
		log.Warnf("could not read %s usage: %v", devShmDir, err)
		return true
	}
	return stat.Free >= size
}
