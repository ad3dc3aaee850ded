package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWindow(t *testing.T, day int, start, end TimeOfDay) Window {
	t.Helper()
	w, err := FromLocalParts(Date{Year: 2024, Month: time.June, Day: day}, start, end, ReferenceZone)
	require.NoError(t, err)
	return w
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Window
		b    Window
		want bool
	}{
		{
			name: "identical windows",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			b:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			want: true,
		},
		{
			name: "partial overlap",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			b:    mustWindow(t, 1, TimeOfDay{9, 30}, TimeOfDay{10, 30}),
			want: true,
		},
		{
			name: "containment",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{12, 0}),
			b:    mustWindow(t, 1, TimeOfDay{10, 0}, TimeOfDay{11, 0}),
			want: true,
		},
		{
			name: "adjacent windows do not overlap",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			b:    mustWindow(t, 1, TimeOfDay{10, 0}, TimeOfDay{11, 0}),
			want: false,
		},
		{
			name: "one minute past adjacency overlaps",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 1}),
			b:    mustWindow(t, 1, TimeOfDay{10, 0}, TimeOfDay{11, 0}),
			want: true,
		},
		{
			name: "different days",
			a:    mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			b:    mustWindow(t, 2, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
			assert.Equal(t, tt.want, HasConflict(tt.a, []Window{tt.b}))
			assert.Equal(t, tt.want, HasConflict(tt.b, []Window{tt.a}))
		})
	}
}

func TestHasConflictAgainstCollection(t *testing.T) {
	existing := []Window{
		mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}),
		mustWindow(t, 1, TimeOfDay{14, 0}, TimeOfDay{15, 0}),
	}

	assert.False(t, HasConflict(mustWindow(t, 1, TimeOfDay{10, 0}, TimeOfDay{11, 0}), existing))
	assert.True(t, HasConflict(mustWindow(t, 1, TimeOfDay{14, 30}, TimeOfDay{15, 30}), existing))
	assert.False(t, HasConflict(mustWindow(t, 1, TimeOfDay{9, 0}, TimeOfDay{10, 0}), nil))
}
