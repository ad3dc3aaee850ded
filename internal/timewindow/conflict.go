package timewindow

// Overlaps reports whether two half-open windows share any instant. Windows
// that only touch at an endpoint (one ends exactly when the other starts) do
// not overlap: back-to-back slots are legal.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// HasConflict reports whether candidate overlaps any member of existing.
//
// This is an optimistic pre-check over the windows the caller already knows
// about; the remote service runs the authoritative check at commit time and
// may still reject a window that passed here.
func HasConflict(candidate Window, existing []Window) bool {
	for _, w := range existing {
		if Overlaps(candidate, w) {
			return true
		}
	}
	return false
}
