package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
)

func TestWindowsKeepsOnlyCalendarOccupyingSlots(t *testing.T) {
	mk := func(hour int, status Status) Availability {
		w, err := timewindow.FromLocalParts(
			timewindow.Date{Year: 2024, Month: time.June, Day: 1},
			timewindow.TimeOfDay{Hour: hour},
			timewindow.TimeOfDay{Hour: hour + 1},
			timewindow.ReferenceZone,
		)
		require.NoError(t, err)
		return Availability{ID: uuid.New(), Window: w, Status: status}
	}

	items := []Availability{
		mk(9, StatusAvailable),
		mk(10, StatusTaken),
		mk(11, StatusCanceled),
		mk(12, StatusCompleted),
	}

	windows := Windows(items)
	require.Len(t, windows, 2)
	assert.True(t, windows[0].Equal(items[0].Window))
	assert.True(t, windows[1].Equal(items[1].Window))
}
