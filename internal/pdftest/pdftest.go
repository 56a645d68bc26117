// Package pdftest builds small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
)

// Builder accumulates pages and image XObjects
type Builder struct {
	objects []string
	pages   []int
	font    int
}

// New starts a document with a catalog, a page tree and a Helvetica font
func New() *Builder {
	b := &Builder{}
	b.add("<< /Type /Catalog /Pages 2 0 R >>")
	b.add("") // page tree, rendered in Bytes
	b.font = b.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	return b
}

func (b *Builder) add(body string) int {
	b.objects = append(b.objects, body)
	return len(b.objects)
}

func (b *Builder) addStream(dict string, data []byte) int {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<< %s /Length %d >>\nstream\n", dict, len(data))
	sb.Write(data)
	sb.WriteString("\nendstream")
	return b.add(sb.String())
}

// AddImage adds an 8-bit image XObject from raw samples (1 component gray, 3 RGB).
// Samples are Flate encoded when flate is true. It returns the object number.
func (b *Builder) AddImage(width, height, components int, samples []byte, flate bool) int {
	colorSpace := "/DeviceRGB"
	if components == 1 {
		colorSpace = "/DeviceGray"
	}

	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8",
		width, height, colorSpace)
	data := samples
	if flate {
		dict += " /Filter /FlateDecode"
		data = Deflate(samples)
	}
	return b.addStream(dict, data)
}

// AddPredictedImage adds an 8-bit image XObject whose rows carry the PNG Up
// predictor before Flate encoding, as scanners commonly write them
func (b *Builder) AddPredictedImage(width, height, components int, samples []byte) int {
	colorSpace := "/DeviceRGB"
	if components == 1 {
		colorSpace = "/DeviceGray"
	}

	stride := width * components
	rows := make([]byte, 0, height*(stride+1))
	for y := 0; y < height; y++ {
		rows = append(rows, 2) // Up
		for x := 0; x < stride; x++ {
			cur := samples[y*stride+x]
			if y > 0 {
				cur -= samples[(y-1)*stride+x]
			}
			rows = append(rows, cur)
		}
	}

	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8"+
		" /Filter /FlateDecode /DecodeParms << /Predictor 15 /Colors %d /BitsPerComponent 8 /Columns %d >>",
		width, height, colorSpace, components, width)
	return b.addStream(dict, Deflate(rows))
}

// AddPage adds a page of the given size in points that shows text and draws each
// image scaled to the full page
func (b *Builder) AddPage(widthPt, heightPt float64, text string, images ...int) {
	var content strings.Builder
	var xobjects strings.Builder

	for i, img := range images {
		fmt.Fprintf(&xobjects, " /Im%d %d 0 R", i, img)
		fmt.Fprintf(&content, "q %g 0 0 %g 0 0 cm /Im%d Do Q\n", widthPt, heightPt, i)
	}
	if text != "" {
		fmt.Fprintf(&content, "BT /F1 12 Tf 10 %g Td (%s) Tj ET\n", heightPt-20, escape(text))
	}

	contents := b.addStream("", []byte(content.String()))

	resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", b.font)
	if xobjects.Len() > 0 {
		resources += " /XObject <<" + xobjects.String() + " >>"
	}

	page := b.add(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << %s >> /Contents %d 0 R >>",
		widthPt, heightPt, resources, contents,
	))
	b.pages = append(b.pages, page)
}

// AddTextPage adds a page showing each line 20pt below the previous one
func (b *Builder) AddTextPage(widthPt, heightPt float64, lines ...string) {
	var content strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&content, "BT /F1 12 Tf 10 %g Td (%s) Tj ET\n", heightPt-20*float64(i+1), escape(line))
	}
	contents := b.addStream("", []byte(content.String()))

	page := b.add(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
		widthPt, heightPt, b.font, contents,
	))
	b.pages = append(b.pages, page)
}

// Bytes renders the document with a classic cross-reference table
func (b *Builder) Bytes() []byte {
	kids := make([]string, len(b.pages))
	for i, p := range b.pages {
		kids[i] = fmt.Sprintf("%d 0 R", p)
	}
	b.objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(b.pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, xref)

	return buf.Bytes()
}

// WriteFile renders the document to path
func (b *Builder) WriteFile(path string) error {
	return os.WriteFile(path, b.Bytes(), 0o644)
}

// Deflate Flate-encodes data with no predictor
func Deflate(data []byte) []byte {
	fl, err := filter.NewFilter(filter.Flate, nil)
	if err != nil {
		panic(err)
	}
	r, err := fl.Encode(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		panic(err)
	}
	return out
}

// Gradient returns width*height*components samples with a smooth pattern
func Gradient(width, height, components int) []byte {
	samples := make([]byte, 0, width*height*components)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < components; c++ {
				samples = append(samples, byte((x*(c+1)+y*(3-c))%256))
			}
		}
	}
	return samples
}

func escape(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(text)
}
