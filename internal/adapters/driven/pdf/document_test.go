//go:build unit

package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pdflib "github.com/digitorus/pdf"
)

// testPDF describes a minimal PDF built by buildPDF.
type testPDF struct {
	pages int
	width int

	// signatures lists the /SubFilter of each top-level signature field.
	signatures []string

	// nestedSignature adds a field whose kid inherits /FT /Sig.
	nestedSignature string
}

// buildPDF writes a PDF with a correct cross reference table.
func buildPDF(t *testing.T, spec testPDF) []byte {
	t.Helper()
	if spec.width == 0 {
		spec.width = 595
	}

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("") // filled in below
	pagesObj := add("")

	var kids []string
	for i := 0; i < spec.pages; i++ {
		content := fmt.Sprintf("%d 0 0 %d 10 10 cm 0 0 m 10 10 l S", i+1, i+1)
		contentObj := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		pageObj := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %d 842] /Resources << >> /Contents %d 0 R >>",
			pagesObj, spec.width, contentObj))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
	}
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), spec.pages)

	var fields []string
	sigValue := func(subFilter string) int {
		return add(fmt.Sprintf("<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /%s /ByteRange [0 0 0 0] /Contents <00> >>", subFilter))
	}
	for i, sf := range spec.signatures {
		v := sigValue(sf)
		f := add(fmt.Sprintf("<< /FT /Sig /T (Signature%d) /V %d 0 R >>", i+1, v))
		fields = append(fields, fmt.Sprintf("%d 0 R", f))
	}
	if spec.nestedSignature != "" {
		v := sigValue(spec.nestedSignature)
		kid := add(fmt.Sprintf("<< /T (kid) /V %d 0 R >>", v))
		parent := add(fmt.Sprintf("<< /FT /Sig /T (parent) /Kids [%d 0 R] >>", kid))
		fields = append(fields, fmt.Sprintf("%d 0 R", parent))
	}

	if len(fields) > 0 {
		form := add(fmt.Sprintf("<< /Fields [%s] /SigFlags 3 >>", strings.Join(fields, " ")))
		objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pagesObj, form)
	} else {
		objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return buf.Bytes()
}

// pageWidths returns the MediaBox width of every page.
func pageWidths(t *testing.T, data []byte) []int64 {
	t.Helper()
	rdr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	var widths []int64
	for i := 1; i <= rdr.NumPage(); i++ {
		v := rdr.Page(i).V
		box := v.Key("MediaBox")
		for box.IsNull() && !v.Key("Parent").IsNull() {
			v = v.Key("Parent")
			box = v.Key("MediaBox")
		}
		widths = append(widths, box.Index(2).Int64())
	}
	return widths
}

func load(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := NewProcessor(nil).Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return doc.(*Document)
}

// TestLoad_PageCount verifies page counting.
func TestLoad_PageCount(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		doc := load(t, buildPDF(t, testPDF{pages: n}))
		if got := doc.PageCount(); got != n {
			t.Errorf("PageCount() = %d, want %d", got, n)
		}
		_ = doc.Close()
	}
}

// TestLoad_Rejects verifies that non-PDF input fails.
func TestLoad_Rejects(t *testing.T) {
	p := NewProcessor(nil)
	for _, data := range [][]byte{nil, []byte("not a pdf"), []byte("%PDF-1.7\ngarbage")} {
		if _, err := p.Load(data); err == nil {
			t.Errorf("Load(%q) should fail", data)
		}
	}
}

// TestSignatureSubFilters verifies the signature dictionary listing.
func TestSignatureSubFilters(t *testing.T) {
	testCases := []struct {
		name string
		spec testPDF
		want []string
	}{
		{"unsigned", testPDF{pages: 1}, nil},
		{"one signature", testPDF{pages: 2, signatures: []string{"adbe.pkcs7.detached"}}, []string{"adbe.pkcs7.detached"}},
		{
			"signature and timestamp",
			testPDF{pages: 2, signatures: []string{"ETSI.CAdES.detached", "ETSI.RFC3161"}},
			[]string{"ETSI.CAdES.detached", "ETSI.RFC3161"},
		},
		{"inherited field type", testPDF{pages: 1, nestedSignature: "ETSI.CAdES.detached"}, []string{"ETSI.CAdES.detached"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := load(t, buildPDF(t, tc.spec))
			defer doc.Close()
			got, err := doc.SignatureSubFilters()
			if err != nil {
				t.Fatalf("SignatureSubFilters() error = %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("SignatureSubFilters() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestInsertPages verifies page order after inserting a template.
func TestInsertPages(t *testing.T) {
	testCases := []struct {
		name     string
		position int
		want     []int64
	}{
		{"prepend", 1, []int64{300, 595, 595, 595}},
		{"middle", 2, []int64{595, 300, 595, 595}},
		{"append", 4, []int64{595, 595, 595, 300}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := load(t, buildPDF(t, testPDF{pages: 3}))
			defer doc.Close()
			template := load(t, buildPDF(t, testPDF{pages: 1, width: 300}))
			defer template.Close()

			if err := doc.InsertPages(template, tc.position); err != nil {
				t.Fatalf("InsertPages() error = %v", err)
			}
			if got := doc.PageCount(); got != 4 {
				t.Fatalf("PageCount() = %d, want 4", got)
			}
			out, err := doc.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			got := pageWidths(t, out)
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Errorf("page widths = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestInsertPages_InvalidPosition verifies the position bounds.
func TestInsertPages_InvalidPosition(t *testing.T) {
	doc := load(t, buildPDF(t, testPDF{pages: 2}))
	template := load(t, buildPDF(t, testPDF{pages: 1}))
	for _, pos := range []int{0, 4} {
		if err := doc.InsertPages(template, pos); err == nil {
			t.Errorf("InsertPages(%d) should fail", pos)
		}
	}
}

// TestClose verifies that a closed document refuses further use.
func TestClose(t *testing.T) {
	doc := load(t, buildPDF(t, testPDF{pages: 1}))
	template := load(t, buildPDF(t, testPDF{pages: 1}))
	if err := doc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if doc.PageCount() != 0 {
		t.Error("PageCount() of closed document should be 0")
	}
	if _, err := doc.Bytes(); !errors.Is(err, ErrClosed) {
		t.Errorf("Bytes() error = %v, want ErrClosed", err)
	}
	if _, err := doc.SignatureSubFilters(); !errors.Is(err, ErrClosed) {
		t.Errorf("SignatureSubFilters() error = %v, want ErrClosed", err)
	}
	if err := template.InsertPages(doc, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertPages(closed) error = %v, want ErrClosed", err)
	}
}

// TestLoad_CopiesInput verifies that the caller's buffer is not retained.
func TestLoad_CopiesInput(t *testing.T) {
	data := buildPDF(t, testPDF{pages: 1})
	doc := load(t, data)
	defer doc.Close()
	data[0] = 'X'
	out, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != '%' {
		t.Error("document shares the input buffer")
	}
}

// TestExampleTemplate verifies the shipped example signature page.
func TestExampleTemplate(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "examples", "policies", "templates", "signpage.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	doc := load(t, data)
	defer doc.Close()
	if doc.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", doc.PageCount())
	}
}
