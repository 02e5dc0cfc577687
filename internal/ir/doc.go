// Package ir provides the canonical intermediate representation for varpath.
//
// It holds the input metadata records (Layout, TypeDef, SymbolDef) produced by the
// layout compiler and the ELF/DWARF loader, the sealed Value model that decoded target
// memory is expressed in, and the journal records written by the variable store.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Layouts are plain data: type references are strings, never pointers, so a
//     Layout can be serialized, hashed and diffed.
//   - Addresses are uint64 regardless of target pointer width.
//   - All JSON/YAML tags use snake_case.
//   - Journal ordering uses logical seq numbers only, never wall-clock timestamps.
package ir
