package plinkbgen

import "errors"

// Error taxonomy for the encode pass. Value-range errors surface from field
// accessors; the other two classes are fatal and abort the pass.
var (
	// ErrValueRange marks a field access beyond its declared arity or a
	// lookup of an unregistered field name.
	ErrValueRange = errors.New("value out of range")

	// ErrConfiguration marks an inconsistent ploidy/allele assumption or an
	// unsupported field-type combination.
	ErrConfiguration = errors.New("configuration error")

	// ErrResource marks an output file or compressor failure. Partial output
	// is left in place; the back-patched totals still read zero, so truncated
	// files are detectable.
	ErrResource = errors.New("resource error")
)
