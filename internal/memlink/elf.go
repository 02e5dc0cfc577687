package memlink

import (
	"debug/elf"
	"fmt"
	"slices"
)

// OpenELFImage maps the allocated sections of an ELF file: PROGBITS sections
// with their file contents, NOBITS sections (.bss) as zeros. Sections without
// SHF_WRITE are mapped read-only. When sections is non-empty only those
// section names are mapped.
//
// The result is the memory a target would hold right after reset, before any
// code runs.
func OpenELFImage(path string, sections ...string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}
	defer f.Close()

	return ELFImage(f, sections...)
}

// ELFImage maps the allocated sections of an already opened ELF file.
func ELFImage(f *elf.File, sections ...string) (*Image, error) {
	img := &Image{}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_TLS != 0 || s.Size == 0 {
			continue
		}
		if len(sections) > 0 && !slices.Contains(sections, s.Name) {
			continue
		}

		var data []byte
		switch s.Type {
		case elf.SHT_PROGBITS, elf.SHT_INIT_ARRAY, elf.SHT_FINI_ARRAY:
			b, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("failed to read section %s: %w", s.Name, err)
			}
			data = b
		case elf.SHT_NOBITS:
			data = make([]byte, s.Size)
		default:
			continue
		}

		if err := img.AddRegion(Region{
			Name:     s.Name,
			Base:     s.Addr,
			Data:     data,
			ReadOnly: s.Flags&elf.SHF_WRITE == 0,
		}); err != nil {
			return nil, err
		}
	}

	if len(img.regions) == 0 {
		return nil, fmt.Errorf("no allocated sections to map")
	}
	return img, nil
}
