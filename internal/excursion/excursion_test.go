package excursion

import (
	"testing"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestClassify_boundaries(t *testing.T) {
	band := models.Band{Min: fp(2), Max: fp(8)}

	// Точное попадание в границу — не алерт.
	require.False(t, Classify(2.0, band))
	require.False(t, Classify(8.0, band))
	require.False(t, Classify(5.0, band))

	require.True(t, Classify(1.9, band))
	require.True(t, Classify(8.1, band))
	require.True(t, Classify(-20, band))
}

func TestClassify_halfOpenBands(t *testing.T) {
	require.True(t, Classify(-15.5, models.Band{Min: fp(-15)}))
	require.False(t, Classify(40, models.Band{Min: fp(-15)}))

	require.True(t, Classify(9, models.Band{Max: fp(8)}))
	require.False(t, Classify(-40, models.Band{Max: fp(8)}))
}

func TestClassify_unbounded(t *testing.T) {
	require.False(t, Classify(-273, models.Band{}))
	require.False(t, Classify(1000, models.Band{}))
}

func TestResolve(t *testing.T) {
	sh := &models.Shipment{Band: models.Band{Min: fp(2), Max: fp(8)}}
	b := Resolve(sh)
	require.Equal(t, 2.0, *b.Min)
	require.Equal(t, 8.0, *b.Max)

	require.True(t, Resolve(&models.Shipment{}).Unbounded())
	require.True(t, Resolve(nil).Unbounded())
}
