package transform

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	documentFooter = `<w:sectPr/></w:body></w:document>`

	pageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
)

// ToWord extracts the text of every page into a .docx document, one paragraph per line
func ToWord(ctx context.Context, log *slog.Logger, req Request) error {
	input, err := singleInput(req)
	if err != nil {
		return err
	}

	file, reader, err := pdf.Open(input)
	if err != nil {
		return fmt.Errorf("failed to read pdf: %w", err)
	}
	defer file.Close()

	numPages := reader.NumPage()
	text := make([][]string, 0, numPages)
	for nr := 1; nr <= numPages; nr++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := reader.Page(nr)
		if page.V.IsNull() {
			text = append(text, nil)
			continue
		}

		lines, err := pageLines(page)
		if err != nil {
			log.Warn("Skipping page text", slog.Int("page", nr), slog.Any("error", err))
		}
		text = append(text, lines)
	}

	if err := writeDocx(req.OutputPath, text); err != nil {
		return err
	}

	log.Info("Converted to word", slog.Int("pages", numPages))
	return nil
}

// pageLines groups the glyphs of a page into rows, top to bottom, left to right
func pageLines(page pdf.Page) ([]string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		for _, glyph := range row.Content {
			sb.WriteString(glyph.S)
		}
		if line := strings.TrimSpace(sb.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// writeDocx writes a minimal WordprocessingML package with a page break between pages
func writeDocx(path string, pages [][]string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create docx: %w", err)
	}
	defer file.Close()

	zw := zip.NewWriter(file)
	parts := []struct {
		name string
		body func(io.Writer) error
	}{
		{"[Content_Types].xml", staticPart(contentTypesXML)},
		{"_rels/.rels", staticPart(relsXML)},
		{"word/document.xml", func(w io.Writer) error { return writeDocumentXML(w, pages) }},
	}

	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s: %w", part.name, err)
		}
		if err := part.body(w); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish docx: %w", err)
	}
	return nil
}

func staticPart(body string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	}
}

func writeDocumentXML(w io.Writer, pages [][]string) error {
	var sb strings.Builder
	sb.WriteString(documentHeader)

	for i, lines := range pages {
		if i > 0 {
			sb.WriteString(pageBreak)
		}
		for _, line := range lines {
			sb.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
			if err := xml.EscapeText(&sb, []byte(line)); err != nil {
				return err
			}
			sb.WriteString(`</w:t></w:r></w:p>`)
		}
	}

	sb.WriteString(documentFooter)
	_, err := io.WriteString(w, sb.String())
	return err
}
