// Package charts renders allocation charts as PNG images.
package charts

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/rs/zerolog"
	charts "github.com/vicanso/go-charts/v2"
)

const (
	chartWidth  = 1200
	chartHeight = 800
	cacheTTL    = 10 * time.Minute
)

// ErrNoAllocation is returned when there is nothing to draw.
var ErrNoAllocation = errors.New("allocation has no rows")

type cacheEntry struct {
	createdAt time.Time
	image     []byte
}

// Service renders allocation charts and caches them by key.
type Service struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
	log   zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		cache: make(map[string]cacheEntry),
		log:   log.With().Str("service", "charts").Logger(),
	}
}

// RenderAllocation draws the allocation rows as a pie chart titled
// "Portfolio Allocation" with the compound return (a fraction) and the
// number of years in the subtitle. Legend entries read "Asset (w%)".
func (s *Service) RenderAllocation(rows []allocation.Row, compoundReturn float64, years int) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoAllocation
	}

	values := make([]float64, len(rows))
	labels := make([]string, len(rows))
	for i, r := range rows {
		values[i] = r.WeightPct
		labels[i] = fmt.Sprintf("%s (%.1f%%)", r.Asset, r.WeightPct)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc("Portfolio Allocation", Subtitle(compoundReturn, years)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// CachedAllocation returns the chart stored under key, rendering it on a miss.
func (s *Service) CachedAllocation(key string, rows []allocation.Row, compoundReturn float64, years int) ([]byte, error) {
	if img, ok := s.cacheGet(key); ok {
		return img, nil
	}

	img, err := s.RenderAllocation(rows, compoundReturn, years)
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, img)
	return img, nil
}

// WriteAllocation renders the chart into dir under FileName(maxPositionSize)
// and returns the written path.
func (s *Service) WriteAllocation(dir string, maxPositionSize float64, rows []allocation.Row, compoundReturn float64, years int) (string, error) {
	img, err := s.RenderAllocation(rows, compoundReturn, years)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}
	path := filepath.Join(dir, FileName(maxPositionSize))
	if err := os.WriteFile(path, img, 0644); err != nil {
		return "", fmt.Errorf("failed to write chart %s: %w", path, err)
	}

	s.log.Info().Str("path", path).Int("positions", len(rows)).Msg("Allocation chart written")
	return path, nil
}

// FileName returns the chart file name for a position cap, e.g.
// portfolio_allocation_40.png for 0.4.
func FileName(maxPositionSize float64) string {
	return fmt.Sprintf("portfolio_allocation_%d.png", int(math.RoundToEven(maxPositionSize*100)))
}

// Subtitle formats the compound return line, e.g.
// "Compound return: 45.1% (5 years)".
func Subtitle(compoundReturn float64, years int) string {
	return fmt.Sprintf("Compound return: %.1f%% (%d years)", compoundReturn*100, years)
}

func (s *Service) cacheGet(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.cache[key]; ok {
		if time.Now().Before(entry.createdAt.Add(cacheTTL)) {
			return append([]byte(nil), entry.image...), true
		}
		delete(s.cache, key)
	}
	return nil, false
}

func (s *Service) cacheSet(key string, img []byte) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{createdAt: time.Now(), image: img}
	s.mu.Unlock()
}
