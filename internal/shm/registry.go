package shm

import (
	"context"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type sharedRegion struct {
	region *MappedRegion
	refs   int
}

// regions holds named regions mapped by this process. Callbacks run under
// the shard lock, so refs needs no further synchronisation.
var regions = cmap.New[*sharedRegion]()

// Acquire maps a region, or returns the mapping this process already holds
// for the same name. Each Acquire must be paired with a Release.
func Acquire(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.Name == "" {
		return MapRegion(ctx, opts)
	}
	var mapErr error
	entry := regions.Upsert(opts.Name, nil, func(exist bool, cur *sharedRegion, _ *sharedRegion) *sharedRegion {
		if exist && cur != nil {
			cur.refs++
			return cur
		}
		region, err := MapRegion(ctx, opts)
		if err != nil {
			mapErr = err
			return nil
		}
		return &sharedRegion{region: region, refs: 1}
	})
	if mapErr != nil {
		regions.RemoveCb(opts.Name, func(_ string, v *sharedRegion, exists bool) bool {
			return exists && v == nil
		})
		return nil, mapErr
	}
	if opts.Size > entry.region.Size() {
		log.Warnf("region %s already mapped with %d bytes, requested %d", opts.Name, entry.region.Size(), opts.Size)
	}
	return entry.region, nil
}

// Release drops one reference taken by Acquire and unmaps the region when
// none remain.
func Release(ctx context.Context, region *MappedRegion) error {
	if region == nil {
		return nil
	}
	if region.Name == "" {
		return UnmapRegion(ctx, region)
	}
	var unmapErr error
	regions.RemoveCb(region.Name, func(_ string, v *sharedRegion, exists bool) bool {
		if !exists || v == nil || v.region != region {
			return false
		}
		v.refs--
		if v.refs > 0 {
			return false
		}
		unmapErr = UnmapRegion(ctx, region)
		return true
	})
	return unmapErr
}

// Mapped returns the names of the regions this process holds through Acquire.
func Mapped() []string {
	return regions.Keys()
}
