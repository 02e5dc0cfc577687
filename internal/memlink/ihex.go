package memlink

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/marcinbor85/gohex"
)

// HexSyntaxError reports Intel HEX input gohex could not parse: a malformed
// or unsupported record, a bad checksum, overlapping data or a missing
// end-of-file record.
type HexSyntaxError struct {
	Err error
}

func (e *HexSyntaxError) Error() string {
	return fmt.Sprintf("intel hex: %v", e.Err)
}

func (e *HexSyntaxError) Unwrap() error { return e.Err }

// OpenIntelHex loads an Intel HEX file as a writable image.
func OpenIntelHex(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file %s: %w", path, err)
	}
	defer f.Close()

	return ReadIntelHex(f)
}

// ReadIntelHex parses I32HEX records into an image. Contiguous data records
// become one region.
func ReadIntelHex(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, &HexSyntaxError{Err: err}
	}

	segs := mem.GetDataSegments()
	slices.SortFunc(segs, func(a, b gohex.DataSegment) int {
		switch {
		case a.Address < b.Address:
			return -1
		case a.Address > b.Address:
			return 1
		}
		return 0
	})

	var regions []Region
	for _, s := range segs {
		base := uint64(s.Address)
		if n := len(regions); n > 0 && regions[n-1].End() == base {
			regions[n-1].Data = append(regions[n-1].Data, s.Data...)
			continue
		}
		regions = append(regions, Region{Base: base, Data: slices.Clone(s.Data)})
	}

	img := &Image{}
	for i := range regions {
		regions[i].Name = fmt.Sprintf("hex%d", i)
		if err := img.AddRegion(regions[i]); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// ihexLineBytes is the data payload per record written by WriteIntelHex.
const ihexLineBytes = 16

// WriteIntelHex writes every region of img as I32HEX data records followed by
// an end-of-file record.
func WriteIntelHex(w io.Writer, img *Image) error {
	mem := gohex.NewMemory()
	for _, r := range img.Regions() {
		if r.End() > 1<<32 {
			return fmt.Errorf("region %q at 0x%x does not fit 32-bit intel hex", r.Name, r.Base)
		}
		if err := mem.AddBinary(uint32(r.Base), r.Data); err != nil {
			return fmt.Errorf("region %q: %w", r.Name, err)
		}
	}
	return mem.DumpIntelHex(w, ihexLineBytes)
}
