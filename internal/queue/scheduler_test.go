package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	loc := time.UTC

	beforeSweep := time.Date(2026, 8, 31, 1, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, loc), nextRun(beforeSweep))

	afterSweep := time.Date(2026, 8, 31, 14, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 9, 1, 2, 0, 0, 0, loc), nextRun(afterSweep))

	exactlyAtSweep := time.Date(2026, 8, 31, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 9, 1, 2, 0, 0, 0, loc), nextRun(exactlyAtSweep))
}
