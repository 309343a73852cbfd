// Package ir provides the dialect-agnostic intermediate representation for
// the converter.
//
// This package contains type definitions and identity primitives only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the IR the foundational layer with no circular dependencies.
//
// The IR models a trained network as an arena of operator nodes (Node) held
// by a Graph: node ids are indices into the arena, edges carry relative time
// offsets, and the closed OpKind enumeration is the only dispatch surface
// consulted by later stages. Descriptor expansion, context analysis,
// optimization and emission all operate on this one structure.
//
// Identity is content-addressed: MarshalCanonical produces RFC 8785 canonical
// JSON and the hash helpers derive domain-separated SHA-256 digests from it.
// These digests key descriptor interning during graph construction and
// conversion fingerprints in the cache ledger.
//
// Key design constraints:
//   - Node ids are unique within a graph and never reused after removal
//   - Canonical JSON carries no floats; float-valued constants are rendered
//     through FormatFloat before hashing
//   - All JSON tags use snake_case
package ir
