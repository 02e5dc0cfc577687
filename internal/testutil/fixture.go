package testutil

import "github.com/roach88/varpath/internal/ir"

// Addresses of the fixture symbols in the .parameter section of a 32-bit
// little-endian target, laid out the way arm-none-eabi-gcc places them.
const (
	FixtureBase           = 0x20000000
	AddrSomeA             = FixtureBase + 0x00 // SomeA, 2 bytes
	AddrNestedStruct      = FixtureBase + 0x02 // NestedStruct, 3 bytes
	AddrSomeEnum          = FixtureBase + 0x08 // SomeEnum, 4 bytes
	AddrNestedStructArray = FixtureBase + 0x0C // NestedStruct[2], 6 bytes
	AddrRecursiveStruct   = FixtureBase + 0x14 // RecursiveStruct, 8 bytes
	FixtureSize           = 0x1C
	FixtureSection        = ".parameter"
)

// FixtureLayout returns the metadata of the test_structs fixture:
//
//	typedef struct { uint8_t a; uint8_t b; } SomeA;
//	typedef struct NestedStruct { SomeA someA; uint8_t c; } NestedStruct;
//	typedef enum SomeEnum { SomeEnumA, SomeEnumB, SomeEnumC } SomeEnum;
//	typedef struct RecursiveStruct { struct RecursiveStruct* next; uint8_t a; } RecursiveStruct;
//
// Each call returns a fresh copy that callers may modify.
func FixtureLayout() ir.Layout {
	return ir.Layout{
		Source:      "test_structs.c",
		ByteOrder:   ir.LittleEndian,
		PointerSize: 4,
		Types: []ir.TypeDef{
			{Name: "SomeA", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "a", Type: "uint8_t", Offset: 0},
				{Name: "b", Type: "uint8_t", Offset: 1},
			}},
			{Name: "NestedStruct", Kind: ir.KindStruct, Fields: []ir.FieldDef{
				{Name: "someA", Type: "SomeA", Offset: 0},
				{Name: "c", Type: "uint8_t", Offset: 2},
			}},
			{Name: "SomeEnum", Kind: ir.KindEnum, Size: 4, Values: []ir.EnumValue{
				{Name: "SomeEnumA", Value: 0},
				{Name: "SomeEnumB", Value: 1},
				{Name: "SomeEnumC", Value: 2},
			}},
			{Name: "RecursiveStruct", Kind: ir.KindStruct, Size: 8, Fields: []ir.FieldDef{
				{Name: "next", Type: "*RecursiveStruct", Offset: 0},
				{Name: "a", Type: "uint8_t", Offset: 4},
			}},
		},
		Symbols: []ir.SymbolDef{
			{Name: "someA", Type: "SomeA", Address: AddrSomeA, Section: FixtureSection},
			{Name: "nestedStruct", Type: "NestedStruct", Address: AddrNestedStruct, Section: FixtureSection},
			{Name: "someEnum", Type: "SomeEnum", Address: AddrSomeEnum, Section: FixtureSection},
			{Name: "nestedStructArray", Type: "NestedStruct[2]", Address: AddrNestedStructArray, Section: FixtureSection},
			{Name: "recursiveStruct", Type: "RecursiveStruct", Address: AddrRecursiveStruct, Section: FixtureSection},
		},
	}
}

// FixtureImage returns the initial contents of the fixture's .parameter
// section, starting at FixtureBase.
func FixtureImage() []byte {
	img := make([]byte, FixtureSize)
	copy(img[AddrSomeA-FixtureBase:], []byte{69, 42})
	copy(img[AddrNestedStruct-FixtureBase:], []byte{0, 1, 2})
	// someEnum = SomeEnumA (0)
	copy(img[AddrNestedStructArray-FixtureBase:], []byte{0, 1, 2, 3, 4, 5})
	// recursiveStruct = {0}
	return img
}
