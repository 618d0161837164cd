package opdb

// Importer receives migrated blocks. What it does with them, for example
// writing into a new storage engine, is up to the implementation.
type Importer interface {
	// ImportBlocks imports multiple blocks in order
	ImportBlocks(blocks []*BlockData) error

	// Flush persists anything buffered so far
	Flush() error
}
