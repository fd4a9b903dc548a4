// Package catalog describes the fixed-layout binary records emitted by the
// accelerator profiling subsystem and decodes them into typed values.
//
// Every record kind has exactly one Format per chip generation. A Format is an
// ordered list of Fields whose whole-word widths sum to the frame width; bit
// sub-fields are carved out of a parent word by (lo, hi) bit range.
//
// # Families
//
// Formats that share one framed byte stream form a Family. The family decides
// the default frame stride and where the type tag lives in the frame header:
//
//   - stars:   64-byte frames, tag = low 6 bits of the little-endian u16 header
//   - hwts:    64-byte frames, tag = low 3 bits of byte 0
//   - tstrack: 24-byte frames (per-tag overrides), tag = byte 1
//   - host:    one format per file, 2-byte magic 0x5a5a, no tag
//
// # Decoding
//
// Decoding is a pure function of the input bytes. Catalog.Decode validates the
// length and reports LENGTH_MISMATCH; Format.Decode assumes the caller already
// sliced exactly Width bytes and panics otherwise. Formats carrying a magic
// number check it before reading any other field.
//
// All values stay in raw hardware cycle-count units. Nothing in this package
// converts time.
package catalog
