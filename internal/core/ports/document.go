package ports

// DocumentProcessor opens documents for signature page preparation.
// This is a port interface - implementations are adapters.
type DocumentProcessor interface {
	// Load parses the document bytes. The returned Document must be closed
	// by the caller.
	Load(data []byte) (Document, error)
}

// Document is an opened document. A Document is owned by a single call and
// is not safe for concurrent use.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// SignatureSubFilters returns the /SubFilter value of every signature
	// dictionary in the document, one entry per signature.
	SignatureSubFilters() ([]string, error)

	// InsertPages inserts all pages of other so that its first page ends up
	// at the 1-based position. Position PageCount()+1 appends.
	InsertPages(other Document, position int) error

	// Bytes serializes the document.
	Bytes() ([]byte, error)

	// Close releases the resources held by the document.
	Close() error
}
