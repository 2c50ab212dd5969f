//go:build windows

package shm

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MapRegion maps or creates a shared memory region (Windows implementation).
// Opening an existing region requires its Size.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, opts.Size)
	}
	var name *uint16
	if opts.Name != "" {
		p, err := windows.UTF16PtrFromString(`Local\` + opts.Name)
		if err != nil {
			return nil, fmt.Errorf("mapping name: %w", err)
		}
		name = p
	}
	size := uint64(opts.Size)
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
		uint32(size>>32), uint32(size), name)
	if h == 0 {
		return nil, fmt.Errorf("CreateFileMapping: %w", err)
	}
	exists := errors.Is(err, windows.ERROR_ALREADY_EXISTS)
	if !opts.Create && !exists && opts.Name != "" {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("open %s: %w", opts.Name, windows.ERROR_FILE_NOT_FOUND)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(opts.Size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}
	log.Infof("mapped region name:%s size:%d existed:%v", opts.Name, opts.Size, exists)
	return &MappedRegion{
		Addr:      unsafe.Slice((*byte)(unsafe.Pointer(addr)), opts.Size),
		Name:      opts.Name,
		handle:    uintptr(h),
		hasHandle: true,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Windows implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&region.Addr[0]))); err != nil {
		return fmt.Errorf("UnmapViewOfFile: %w", err)
	}
	region.Addr = nil
	if region.hasHandle {
		region.hasHandle = false
		if err := windows.CloseHandle(windows.Handle(region.handle)); err != nil {
			log.Warnf("close mapping handle:%d, error:%s", region.handle, err.Error())
		}
	}
	return nil
}

// RemoveRegion is a no-op on Windows: a mapping disappears with its last handle.
func RemoveRegion(name string) error {
	return nil
}
