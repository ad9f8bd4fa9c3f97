package timeline

import "fmt"

// Default marker intervals in seconds.
const (
	MajorMarkerInterval = 60
	MinorMarkerInterval = 5
)

// FormatTime renders whole seconds as "M:SS". Input is assumed non-negative.
func FormatTime(seconds int) string {
	minutes := seconds / 60
	return fmt.Sprintf("%d:%02d", minutes, seconds%60)
}

// Marker is one tick on the timeline ruler. Major ticks carry a label.
type Marker struct {
	Time    int    `json:"time"`
	IsMajor bool   `json:"isMajor"`
	Label   string `json:"label,omitempty"`
}

// GenerateMarkers produces ticks from 0 to duration inclusive at the default
// intervals (5s minor, 60s major).
func GenerateMarkers(duration int) []Marker {
	return GenerateMarkersAt(duration, MajorMarkerInterval, MinorMarkerInterval)
}

// GenerateMarkersAt produces ticks stepping by minorInterval, flagging each
// tick major iff its time is a multiple of majorInterval. A non-positive
// duration or interval yields no markers.
func GenerateMarkersAt(duration, majorInterval, minorInterval int) []Marker {
	if duration <= 0 || majorInterval <= 0 || minorInterval <= 0 {
		return nil
	}

	markers := make([]Marker, 0, duration/minorInterval+1)
	for t := 0; t <= duration; t += minorInterval {
		m := Marker{Time: t, IsMajor: t%majorInterval == 0}
		if m.IsMajor {
			m.Label = FormatTime(t)
		}
		markers = append(markers, m)
	}
	return markers
}
