package memlink

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies how an image file is stored.
type Format string

const (
	FormatELF Format = "elf"
	FormatHex Format = "ihex"
	FormatRaw Format = "raw"
)

// DetectFormat picks the format of an image file: ELF by magic number, Intel
// HEX by extension (.hex, .ihex, .ihx), raw otherwise.
func DetectFormat(path string, head []byte) Format {
	if bytes.HasPrefix(head, []byte(elf.ELFMAG)) {
		return FormatELF
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".ihx":
		return FormatHex
	}
	return FormatRaw
}

// Open loads an image file in whichever format it is stored. base is the
// load address of a raw binary and is ignored for the other formats.
func Open(path string, base uint64) (*Image, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", path, err)
	}

	format := DetectFormat(path, data)
	var img *Image
	switch format {
	case FormatELF:
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, format, fmt.Errorf("failed to open ELF file %s: %w", path, err)
		}
		img, err = ELFImage(f)
		if err != nil {
			return nil, format, fmt.Errorf("image %s: %w", path, err)
		}
	case FormatHex:
		img, err = ReadIntelHex(bytes.NewReader(data))
		if err != nil {
			return nil, format, fmt.Errorf("image %s: %w", path, err)
		}
	default:
		if len(data) == 0 {
			return nil, format, fmt.Errorf("image %s is empty", path)
		}
		img = NewBufferFrom(base, data)
	}
	return img, format, nil
}

// Save writes img back to path in format. ELF images cannot be saved;
// export them as Intel HEX instead. A raw save requires a single region.
func Save(path string, img *Image, format Format) error {
	var buf bytes.Buffer
	switch format {
	case FormatHex:
		if err := WriteIntelHex(&buf, img); err != nil {
			return err
		}
	case FormatRaw:
		regions := img.Regions()
		if len(regions) != 1 {
			return fmt.Errorf("raw image needs exactly one region, have %d", len(regions))
		}
		buf.Write(regions[0].Data)
	default:
		return fmt.Errorf("cannot save %s image", format)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace image: %w", err)
	}
	return nil
}
