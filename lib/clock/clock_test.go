package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), m.Now())

	m.Set(start)
	assert.Equal(t, start, m.Now())
}

func TestParse(t *testing.T) {
	got, err := Parse("2026-03-04T05:06:07Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), got)

	got, err = Parse("2026-03-04T07:06:07+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)))

	_, err = Parse("yesterday")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 3, 4, 7, 6, 7, 0, time.FixedZone("x", 2*3600))
	assert.Equal(t, "2026-03-04T05:06:07Z", Format(ts))
}
