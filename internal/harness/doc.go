// Package harness runs varpath scenarios: a layout, a memory image and a
// list of resolve/get/set steps with expected outcomes.
//
// # Scenario Format
//
// Scenarios are YAML files. Paths are relative to the scenario file:
//
//	name: nested_array_offsets
//	description: "Element stride is the element size"
//	layout: layouts/test_structs.cue
//	image:
//	  base: 0x20000000
//	  size: 28
//	  init:
//	    - address: 0x20000000
//	      bytes: [69, 42]
//	journal: true
//	steps:
//	  - op: resolve
//	    path: nestedStructArray[1].c
//	    expect: { address: 0x20000011, size: 1, type: uint8_t }
//	  - op: set
//	    path: someEnum
//	    value: SomeEnumB
//	  - op: get
//	    path: nestedStructArray[2]
//	    expect: { error: INDEX_OUT_OF_RANGE }
//	assertions:
//	  - type: memory
//	    address: 0x20000008
//	    bytes: [1, 0, 0, 0]
//	  - type: journal_count
//	    count: 1
//
// # Step Operations
//
//   - resolve: path to address, size and type
//   - get: read and decode
//   - set: encode value and write
//   - follow: read the pointer at path and resolve tail from its target
//   - reload: swap in another layout (a relink)
//   - replay: re-apply the scenario's journal session by path
//
// # Assertion Types
//
//   - memory: raw bytes at an address
//   - journal_count: number of journaled writes
//   - trace_count: number of steps with an op (and optionally a path)
//   - trace_order: paths appear in the trace in this order
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal, a fresh seq clock and a fixed
// session id, so traces are byte-identical across runs and can be
// compared against golden files.
package harness
