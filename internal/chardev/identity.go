package chardev

import (
	"fmt"
	"sync"
)

// Identity space limits, matching the Linux character device table.
const (
	// MaxMajor is the highest assignable major number.
	MaxMajor = 511

	// MinorBits is the width of the minor number.
	MinorBits = 20
)

// dynamicMajors lists the ranges searched, in order, when no major is requested.
var dynamicMajors = [][2]uint32{
	{254, 234},
	{511, 384},
}

// Identity is the (major, minor) pair of an allocated device.
type Identity struct {
	Major uint32
	Minor uint32
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return fmt.Sprintf("%d:%d", id.Major, id.Minor)
}

// Request describes the identity region to allocate.
type Request struct {
	// Major is the preferred major number; zero asks for a dynamic one.
	Major uint32

	// BaseMinor is the first minor of the region.
	BaseMinor uint32

	// Count is the number of minors; zero is treated as one.
	Count uint32

	// Name labels the region for diagnostics.
	Name string
}

// region is one allocated range of minors under a major.
type region struct {
	major     uint32
	baseMinor uint32
	count     uint32
	name      string
}

func (r region) overlaps(o region) bool {
	if r.major != o.major {
		return false
	}
	return r.baseMinor < o.baseMinor+o.count && o.baseMinor < r.baseMinor+r.count
}

// Allocator hands out device identities and tracks which are in use.
//
// Thread Safety: all methods are safe for concurrent use.
type Allocator struct {
	mu      sync.Mutex
	regions []region
}

// NewAllocator creates an empty identity allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate reserves the requested region and returns its first identity.
//
// Parameters:
//   - req: Preferred major (0 for dynamic), base minor, count and name
//
// Returns:
//   - Identity: Major and base minor of the reserved region
//   - error: ErrRegionBusy, ErrIdentityExhausted or ErrInvalidRequest
func (a *Allocator) Allocate(req Request) (Identity, error) {
	count := req.Count
	if count == 0 {
		count = 1
	}
	if uint64(req.BaseMinor)+uint64(count) > 1<<MinorBits {
		return Identity{}, fmt.Errorf("%w: minors %d+%d exceed %d bits", ErrInvalidRequest, req.BaseMinor, count, MinorBits)
	}
	if req.Major > MaxMajor {
		return Identity{}, fmt.Errorf("%w: major %d above %d", ErrInvalidRequest, req.Major, MaxMajor)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	r := region{major: req.Major, baseMinor: req.BaseMinor, count: count, name: req.Name}

	if req.Major != 0 {
		for _, held := range a.regions {
			if held.overlaps(r) {
				return Identity{}, fmt.Errorf("%w: %d:%d held by %q", ErrRegionBusy, req.Major, req.BaseMinor, held.name)
			}
		}
		a.regions = append(a.regions, r)
		return Identity{Major: r.major, Minor: r.baseMinor}, nil
	}

	major, ok := a.freeMajorLocked()
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrIdentityExhausted, req.Name)
	}
	r.major = major
	a.regions = append(a.regions, r)
	return Identity{Major: r.major, Minor: r.baseMinor}, nil
}

// freeMajorLocked finds a dynamic major with no regions. Caller holds a.mu.
func (a *Allocator) freeMajorLocked() (uint32, bool) {
	used := make(map[uint32]bool, len(a.regions))
	for _, r := range a.regions {
		used[r.major] = true
	}
	for _, span := range dynamicMajors {
		for m := span[0]; m >= span[1]; m-- {
			if !used[m] {
				return m, true
			}
		}
	}
	return 0, false
}

// Release frees the region starting at id.
func (a *Allocator) Release(id Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.regions {
		if r.major == id.Major && r.baseMinor == id.Minor {
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotAllocated, id)
}

// Allocated reports whether a region starts at id.
func (a *Allocator) Allocated(id Identity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if r.major == id.Major && r.baseMinor == id.Minor {
			return true
		}
	}
	return false
}

// Len returns the number of allocated regions.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.regions)
}
