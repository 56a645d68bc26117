package pdfdoc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/pdf-station/internal/pdftest"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	b := pdftest.New()
	img := b.AddImage(120, 80, 3, pdftest.Gradient(120, 80, 3), true)
	gray := b.AddImage(40, 40, 1, pdftest.Gradient(40, 40, 1), false)
	b.AddPage(200, 100, "first page", img)
	b.AddPage(300, 400, "second page", img, gray)

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	require.NoError(t, b.WriteFile(path))
	return path
}

func TestOpen_Pages(t *testing.T) {
	doc, err := Open(writeFixture(t))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())

	pages, err := doc.Pages()
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 200.0, pages[0].WidthPt)
	assert.Equal(t, 100.0, pages[0].HeightPt)
	assert.Len(t, pages[0].Images, 1)
	assert.Len(t, pages[0].Contents, 1)

	assert.Equal(t, 300.0, pages[1].WidthPt)
	require.Len(t, pages[1].Images, 2)
	assert.Equal(t, pages[0].Images[0], pages[1].Images[0])
}

func TestDocument_Image(t *testing.T) {
	doc, err := Open(writeFixture(t))
	require.NoError(t, err)

	pages, err := doc.Pages()
	require.NoError(t, err)

	img, err := doc.Image(pages[1].Images[0])
	require.NoError(t, err)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 80, img.Height)
	assert.Equal(t, FilterFlate, img.Filter)
	assert.Equal(t, ColorSpaceRGB, img.ColorSpace)
	assert.Equal(t, 3, img.ColorComponents)
	assert.Equal(t, 8, img.BitsPerComponent)
	assert.False(t, img.HasMask)

	gray, err := doc.Image(pages[1].Images[1])
	require.NoError(t, err)
	assert.Equal(t, FilterNone, gray.Filter)
	assert.Equal(t, 1, gray.ColorComponents)
	assert.Len(t, gray.Data, 40*40)

	ids, err := doc.Images()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestDocument_ReplaceContentStreamAndSave(t *testing.T) {
	doc, err := Open(writeFixture(t))
	require.NoError(t, err)

	pages, err := doc.Pages()
	require.NoError(t, err)
	id := pages[0].Contents[0]

	original, err := doc.Decoded(id)
	require.NoError(t, err)
	assert.Contains(t, string(original), "(first page) Tj")

	require.NoError(t, doc.ReplaceContentStream(id, original))

	out := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, doc.Save(out))

	reopened, err := Open(out)
	require.NoError(t, err)

	stream, err := reopened.ContentStream(id)
	require.NoError(t, err)
	assert.Equal(t, FilterFlate, stream.Filter)

	decoded, err := reopened.Decoded(id)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDocument_DecodedUndoesPredictor(t *testing.T) {
	samples := pdftest.Gradient(150, 120, 3)
	b := pdftest.New()
	scan := b.AddPredictedImage(150, 120, 3, samples)
	flat := b.AddImage(150, 120, 3, samples, true)
	b.AddPage(72, 72, "", scan, flat)

	path := filepath.Join(t.TempDir(), "predicted.pdf")
	require.NoError(t, b.WriteFile(path))

	doc, err := Open(path)
	require.NoError(t, err)

	predicted, err := doc.Decoded(ObjectID(scan))
	require.NoError(t, err)
	assert.Equal(t, samples, predicted)

	plain, err := doc.Decoded(ObjectID(flat))
	require.NoError(t, err)
	assert.Equal(t, samples, plain)
}

func TestDocument_DecodedRejectsImageCodecs(t *testing.T) {
	doc, err := Open(writeFixture(t))
	require.NoError(t, err)

	pages, err := doc.Pages()
	require.NoError(t, err)
	id := pages[0].Images[0]

	require.NoError(t, doc.ReplaceImage(id, EncodedImage{Data: []byte{0xff, 0xd8, 0xff, 0xd9}, Width: 1, Height: 1, Components: 3}))

	_, err = doc.Decoded(id)
	assert.ErrorIs(t, err, ErrUnsupportedFilter)
}

func TestDocument_NotStream(t *testing.T) {
	doc, err := Open(writeFixture(t))
	require.NoError(t, err)

	// object 1 is the catalog
	_, err = doc.Image(1)
	assert.ErrorIs(t, err, ErrNotStream)
	_, err = doc.ContentStream(9999)
	assert.ErrorIs(t, err, ErrNotStream)
}
