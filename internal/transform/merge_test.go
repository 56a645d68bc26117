package transform

import (
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	first := writePDF(t, dir, "first", 100)
	second := writePDF(t, dir, "second", 200, 300)
	out := filepath.Join(dir, "merged.pdf")

	err := NewTransformer().Transform(t.Context(), discardLogger(), domain.OperationMerge, Request{
		Inputs:     []string{first, second},
		OutputPath: out,
	})
	require.NoError(t, err)

	count, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []float64{100, 200, 300}, pageWidths(t, out))
}

func TestMerge_NoInputs(t *testing.T) {
	err := Merge(t.Context(), discardLogger(), Request{OutputPath: "out.pdf"})
	assert.True(t, domain.IsTerminal(err))
}
