package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func sampleRows() []allocation.Row {
	return []allocation.Row{
		{ISIN: "A", Asset: "Fund A", WeightPct: 40, Category: "Equity"},
		{ISIN: "B", Asset: "Fund B", WeightPct: 40, Category: "Equity"},
		{ISIN: "C", Asset: "Fund C", WeightPct: 20, Category: "Bonds"},
	}
}

func TestRenderAllocation(t *testing.T) {
	s := NewService(zerolog.Nop())

	img, err := s.RenderAllocation(sampleRows(), 0.4512, 5)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRenderAllocation_Empty(t *testing.T) {
	s := NewService(zerolog.Nop())

	_, err := s.RenderAllocation(nil, 0.1, 5)
	assert.ErrorIs(t, err, ErrNoAllocation)
}

func TestWriteAllocation(t *testing.T) {
	s := NewService(zerolog.Nop())
	dir := filepath.Join(t.TempDir(), "visualizations")

	path, err := s.WriteAllocation(dir, 0.1, sampleRows(), 0.4512, 5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "portfolio_allocation_10.png"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, pngMagic))
}

func TestCachedAllocation(t *testing.T) {
	s := NewService(zerolog.Nop())

	first, err := s.CachedAllocation("run-1", sampleRows(), 0.45, 5)
	require.NoError(t, err)

	// A cache hit ignores the rows
	second, err := s.CachedAllocation("run-1", nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "portfolio_allocation_40.png", FileName(0.4))
	assert.Equal(t, "portfolio_allocation_10.png", FileName(0.1))
	assert.Equal(t, "portfolio_allocation_100.png", FileName(1))
}

func TestSubtitle(t *testing.T) {
	assert.Equal(t, "Compound return: 45.1% (5 years)", Subtitle(0.4512, 5))
}
