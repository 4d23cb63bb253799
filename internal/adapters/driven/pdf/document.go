// Package pdf implements the document port for PDF files. Structure is read
// with digitorus/pdf; pages are merged with pdfcpu.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	pdflib "github.com/digitorus/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// maxFieldDepth bounds the walk of the AcroForm field tree.
const maxFieldDepth = 32

// ErrClosed is returned when a closed document is used.
var ErrClosed = errors.New("pdf document is closed")

// Processor loads PDF documents.
type Processor struct {
	logger *zap.Logger
}

// NewProcessor creates a PDF processor.
func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

// Load parses data as a PDF document.
func (p *Processor) Load(data []byte) (ports.Document, error) {
	if len(data) == 0 {
		return nil, errors.New("empty PDF document")
	}
	doc := &Document{data: bytes.Clone(data), logger: p.logger}
	if err := doc.open(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Document is an in-memory PDF document.
type Document struct {
	data   []byte
	rdr    *pdflib.Reader
	logger *zap.Logger
	closed bool
}

// open (re)reads the structure of d.data.
func (d *Document) open() (err error) {
	// digitorus/pdf panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()
	rdr, err := pdflib.NewReader(bytes.NewReader(d.data), int64(len(d.data)))
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	d.rdr = rdr
	return nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d.closed || d.rdr == nil {
		return 0
	}
	return d.rdr.NumPage()
}

// SignatureSubFilters returns the /SubFilter of every signed signature field
// in the document's AcroForm.
func (d *Document) SignatureSubFilters() (subFilters []string, err error) {
	if d.closed {
		return nil, ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			subFilters, err = nil, fmt.Errorf("failed to read signature dictionaries: %v", r)
		}
	}()

	acroForm := d.rdr.Trailer().Key("Root").Key("AcroForm")
	if acroForm.IsNull() {
		return nil, nil
	}
	fields := acroForm.Key("Fields")
	if fields.IsNull() {
		return nil, nil
	}
	if fields.Kind() != pdflib.Array {
		return nil, fmt.Errorf("AcroForm /Fields is not an array")
	}
	subFilters = []string{}
	for i := 0; i < fields.Len(); i++ {
		if err := collectSignatures(fields.Index(i), "", 0, &subFilters); err != nil {
			return nil, err
		}
	}
	return subFilters, nil
}

// collectSignatures walks a field and its kids. The field type is inherited
// from the parent when a kid does not declare one.
func collectSignatures(field pdflib.Value, inheritedType string, depth int, out *[]string) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("AcroForm field tree deeper than %d levels", maxFieldDepth)
	}
	if field.Kind() != pdflib.Dict {
		return nil
	}
	fieldType := inheritedType
	if ft := field.Key("FT"); ft.Kind() == pdflib.Name {
		fieldType = ft.Name()
	}
	if fieldType == "Sig" {
		if v := field.Key("V"); v.Kind() == pdflib.Dict {
			*out = append(*out, v.Key("SubFilter").Name())
		}
	}
	kids := field.Key("Kids")
	if kids.Kind() != pdflib.Array {
		return nil
	}
	for i := 0; i < kids.Len(); i++ {
		if err := collectSignatures(kids.Index(i), fieldType, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// InsertPages inserts all pages of other before the given 1-based position.
func (d *Document) InsertPages(other ports.Document, position int) error {
	if d.closed {
		return ErrClosed
	}
	src, ok := other.(*Document)
	if !ok {
		return fmt.Errorf("unsupported document type %T", other)
	}
	if src.closed {
		return ErrClosed
	}
	pages := d.PageCount()
	if position < 1 || position > pages+1 {
		return fmt.Errorf("insert position %d outside 1-%d", position, pages+1)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var parts []io.ReadSeeker
	if position > 1 {
		head, err := selectPages(d.data, "1-"+strconv.Itoa(position-1), conf)
		if err != nil {
			return err
		}
		parts = append(parts, bytes.NewReader(head))
	}
	parts = append(parts, bytes.NewReader(src.data))
	if position <= pages {
		tail, err := selectPages(d.data, strconv.Itoa(position)+"-", conf)
		if err != nil {
			return err
		}
		parts = append(parts, bytes.NewReader(tail))
	}

	var merged bytes.Buffer
	if err := api.MergeRaw(parts, &merged, false, conf); err != nil {
		return fmt.Errorf("merge PDF documents: %w", err)
	}
	d.data = merged.Bytes()
	if err := d.open(); err != nil {
		return err
	}
	d.logger.Debug("inserted PDF pages",
		zap.Int("position", position),
		zap.Int("inserted", src.PageCount()),
		zap.Int("total", d.PageCount()))
	return nil
}

// selectPages returns a copy of data holding only the selected pages.
func selectPages(data []byte, selection string, conf *model.Configuration) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, []string{selection}, conf); err != nil {
		return nil, fmt.Errorf("select pages %s: %w", selection, err)
	}
	return out.Bytes(), nil
}

// Bytes returns the serialized document.
func (d *Document) Bytes() ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	return bytes.Clone(d.data), nil
}

// Close releases the document. Closing twice is a no-op.
func (d *Document) Close() error {
	d.closed = true
	d.rdr = nil
	d.data = nil
	return nil
}

// Ensure implementations satisfy interfaces
var _ ports.DocumentProcessor = (*Processor)(nil)
var _ ports.Document = (*Document)(nil)
