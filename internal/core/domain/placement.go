package domain

// ImagePosition returns the x and y coordinates for the next signature image
// given the number of signatures already applied. Images fill the page row
// by row, columns images per row.
//
// This is a pure function with no side effects or I/O.
func ImagePosition(signatureCount, columns int, placement ImagePlacementConfiguration) (x, y int) {
	if columns < 1 {
		columns = 1
	}
	column := signatureCount % columns
	row := signatureCount / columns
	x = placement.XPosition + column*placement.XIncrement
	y = placement.YPosition + row*placement.YIncrement
	return x, y
}

// SignaturePageNumber resolves the 1-based page number that holds the
// signature images, given the page where the template block starts and the
// number of pages in the template.
//
// selector nil or 1 picks the first page, 0 the last and n the n:th page of
// the block.
func SignaturePageNumber(blockStart, templatePages int, selector *int) int {
	switch {
	case selector == nil || *selector == 1:
		return blockStart
	case *selector == 0:
		return blockStart + templatePages - 1
	default:
		return blockStart + *selector - 1
	}
}

// InsertPosition returns the 1-based position where a template block is
// inserted into a document of documentPages pages. Zero means append.
func InsertPosition(insertPageAt, documentPages int) int {
	if insertPageAt == 0 {
		return documentPages + 1
	}
	return insertPageAt
}
