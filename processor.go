package plinkbgen

// VariantCallProcessor is the contract the query engine drives. For each
// matched variant position it calls ProcessInterval once, in increasing
// coordinate order, then ProcessCall once per (sample, interval) pair that
// satisfies the active row and column constraints, samples in increasing
// row-index order. Calls are never concurrent; implementations own the
// calling thread for the duration of each call and must not block it.
type VariantCallProcessor interface {
	ProcessInterval(interval GenomicInterval) error

	// ProcessCall delivers one sample's data at one position. coordinates[0]
	// is the row (sample) index, coordinates[1] the column. The field buffers
	// are borrowed and must not be retained past the call.
	ProcessCall(sampleName string, coordinates [2]int64, interval GenomicInterval, fields []GenomicField) error
}
