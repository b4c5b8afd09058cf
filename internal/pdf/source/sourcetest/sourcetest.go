// Package sourcetest builds small PDF files for tests.
package sourcetest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Stream formats a stream object with the given dictionary entries
func Stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Build lays out objects 1..n with a classic xref table. Object 1 is the
// catalog.
func Build(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// SampleContent is the content stream of the Sample page
const SampleContent = "BT /F1 20 Tf 72 700 Td (HELLO WORLD) Tj ET\n" +
	"BT /F1 10 Tf 72 650 Td (Body text) Tj 0 -14 Td [(Kerned) -300 (words)] TJ ET\n" +
	"q 100 0 0 100 50 50 cm /Im0 Do Q"

// Sample is a one page US Letter document with a heading, two body lines,
// one image, a link annotation and a required text field "contact.email".
func Sample() []byte {
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 4 0 R >> /XObject << /Im0 6 0 R >> >> " +
			"/Contents 5 0 R /Annots [7 0 R 8 0 R] >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		Stream("", SampleContent),
		Stream("/Type /XObject /Subtype /Image /Width 2 /Height 3 /ColorSpace /DeviceGray /BitsPerComponent 8", "\x00\x00\x00\x00\x00\x00"),
		"<< /Type /Annot /Subtype /Link /Rect [72 100 200 120] /A << /S /URI /URI (https://example.com) >> >>",
		"<< /Type /Annot /Subtype /Widget /Rect [272 220 72 200] /FT /Tx /T (email) /V (ada@example.com) /Ff 2 /Parent 9 0 R >>",
		"<< /T (contact) /Kids [8 0 R] >>",
	})
}

// TwoPages is a two page document with one line of text per page
func TwoPages() []byte {
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 5 0 R >> >> >>",
		"<< /Type /Page /Parent 2 0 R /Contents 6 0 R >>",
		"<< /Type /Page /Parent 2 0 R /Contents 7 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		Stream("", "BT /F1 12 Tf 72 700 Td (First page) Tj ET"),
		Stream("", "BT /F1 12 Tf 72 700 Td (Second page) Tj ET"),
	})
}

// WriteFile writes data to a temporary directory and returns the path
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
