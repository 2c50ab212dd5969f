//go:build !linux && !windows

package shm

import "context"

// MapRegion reports ErrUnsupported on this platform.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion reports ErrUnsupported on this platform.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	return ErrUnsupported
}

// RemoveRegion reports ErrUnsupported on this platform.
func RemoveRegion(name string) error {
	return ErrUnsupported
}
