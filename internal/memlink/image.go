// Package memlink provides memory.Link implementations that do not need a
// physical target: a sparse in-process image (used as a simulator and for
// tests), images loaded from ELF sections or Intel HEX files, and a
// logging decorator for any link.
package memlink

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/varpath/internal/memory"
)

// Region is one contiguous mapped range.
type Region struct {
	Name     string
	Base     uint64
	Data     []byte
	ReadOnly bool
}

// End returns the first address past the region.
func (r *Region) End() uint64 {
	return r.Base + uint64(len(r.Data))
}

func (r *Region) contains(addr uint64, n int) bool {
	if addr < r.Base {
		return false
	}
	off := addr - r.Base
	return off <= uint64(len(r.Data)) && uint64(n) <= uint64(len(r.Data))-off
}

// Image is a sparse memory made of non-overlapping regions.
// A transfer must fall entirely inside one region.
//
// Image is safe for concurrent use.
type Image struct {
	mu      sync.RWMutex
	regions []*Region // sorted by Base
}

var _ memory.Link = (*Image)(nil)

// NewImage creates an image from regions. Region data is used in place.
func NewImage(regions ...Region) (*Image, error) {
	img := &Image{}
	for _, r := range regions {
		if err := img.AddRegion(r); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// NewBuffer creates a writable single-region image of size zeroed bytes at base.
func NewBuffer(base uint64, size int) *Image {
	return &Image{regions: []*Region{{Name: "ram", Base: base, Data: make([]byte, size)}}}
}

// NewBufferFrom creates a writable single-region image holding a copy of data.
func NewBufferFrom(base uint64, data []byte) *Image {
	return &Image{regions: []*Region{{Name: "ram", Base: base, Data: slices.Clone(data)}}}
}

// AddRegion maps r. Empty regions are ignored.
func (img *Image) AddRegion(r Region) error {
	if len(r.Data) == 0 {
		return nil
	}
	if r.Base+uint64(len(r.Data)) < r.Base {
		return fmt.Errorf("region %q at 0x%x wraps the address space", r.Name, r.Base)
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	for _, existing := range img.regions {
		if r.Base < existing.End() && existing.Base < r.Base+uint64(len(r.Data)) {
			return fmt.Errorf("region %q [0x%x, 0x%x) overlaps %q [0x%x, 0x%x)",
				r.Name, r.Base, r.Base+uint64(len(r.Data)), existing.Name, existing.Base, existing.End())
		}
	}

	img.regions = append(img.regions, &r)
	slices.SortFunc(img.regions, func(a, b *Region) int {
		switch {
		case a.Base < b.Base:
			return -1
		case a.Base > b.Base:
			return 1
		}
		return 0
	})
	return nil
}

// Regions returns a snapshot of the mapped regions ordered by base address.
// The returned regions share no memory with the image.
func (img *Image) Regions() []Region {
	img.mu.RLock()
	defer img.mu.RUnlock()

	out := make([]Region, len(img.regions))
	for i, r := range img.regions {
		out[i] = Region{Name: r.Name, Base: r.Base, Data: slices.Clone(r.Data), ReadOnly: r.ReadOnly}
	}
	return out
}

// find returns the region containing [addr, addr+n). Caller holds mu.
func (img *Image) find(addr uint64, n int) *Region {
	i, found := slices.BinarySearchFunc(img.regions, addr, func(r *Region, a uint64) int {
		switch {
		case r.Base < a:
			return -1
		case r.Base > a:
			return 1
		}
		return 0
	})
	if !found {
		i--
	}
	if i < 0 {
		return nil
	}
	if r := img.regions[i]; r.contains(addr, n) {
		return r
	}
	return nil
}

// ReadBytes implements memory.Link.
func (img *Image) ReadBytes(ctx context.Context, addr uint64, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}

	img.mu.RLock()
	defer img.mu.RUnlock()

	r := img.find(addr, n)
	if r == nil {
		return nil, &UnmappedError{Address: addr, Length: n}
	}
	off := addr - r.Base
	return slices.Clone(r.Data[off : off+uint64(n)]), nil
}

// WriteBytes implements memory.Link.
func (img *Image) WriteBytes(ctx context.Context, addr uint64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	r := img.find(addr, len(data))
	if r == nil {
		return &UnmappedError{Address: addr, Length: len(data)}
	}
	if r.ReadOnly {
		return &ReadOnlyError{Region: r.Name, Address: addr}
	}
	copy(r.Data[addr-r.Base:], data)
	return nil
}
