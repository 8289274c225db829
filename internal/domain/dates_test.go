package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineDate(t *testing.T) {
	// 2023-11-05 is a Sunday.
	sun := day(2023, 11, 5)
	mon := day(2023, 11, 6)
	tue := day(2023, 11, 7)

	t.Run("first date dropped, first weekday returned", func(t *testing.T) {
		got, ok := DetermineDate([]time.Time{sun, mon, tue})
		require.True(t, ok)
		assert.Equal(t, mon, got)
	})

	t.Run("weekend skipped after dropping first", func(t *testing.T) {
		// Thu 11/2 .. Tue 11/7: drop Thursday, return Friday before the
		// weekend is ever considered.
		dates := []time.Time{
			day(2023, 11, 2), // Thu
			day(2023, 11, 3), // Fri
			day(2023, 11, 4), // Sat
			sun, mon, tue,
		}
		got, ok := DetermineDate(dates)
		require.True(t, ok)
		assert.Equal(t, day(2023, 11, 3), got)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		got, ok := DetermineDate([]time.Time{tue, sun, mon})
		require.True(t, ok)
		assert.Equal(t, mon, got)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		got, ok := DetermineDate([]time.Time{sun, sun, mon, mon, tue})
		require.True(t, ok)
		assert.Equal(t, mon, got)
	})

	t.Run("empty input", func(t *testing.T) {
		_, ok := DetermineDate(nil)
		assert.False(t, ok)
	})

	t.Run("single date", func(t *testing.T) {
		_, ok := DetermineDate([]time.Time{mon})
		assert.False(t, ok)
	})

	t.Run("only weekend remains", func(t *testing.T) {
		_, ok := DetermineDate([]time.Time{day(2023, 11, 3), day(2023, 11, 4)})
		assert.False(t, ok)
	})
}
