// Package subtitle renders timestamped transcript segments as SRT or WebVTT.
package subtitle

import (
	"fmt"
	"math"
	"strings"

	"scribe/internal/models"
)

// Timestamp formats seconds as HH:MM:SS<sep>mmm. Milliseconds are truncated,
// never rounded. Negative input renders as zero.
func Timestamp(seconds float64, sep string) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.Floor(seconds * 1000))
	h := totalMs / 3_600_000
	m := (totalMs % 3_600_000) / 60_000
	s := (totalMs % 60_000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}

// SRT renders segments as SubRip: 1-based index, comma millisecond
// separator, blocks separated by a blank line.
func SRT(segments []models.Segment) string {
	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1,
			Timestamp(seg.Start, ","),
			Timestamp(seg.End, ","),
			strings.TrimSpace(seg.Text),
		))
	}
	return strings.Join(blocks, "\n")
}

// VTT renders segments as WebVTT with the WEBVTT header and a dot
// millisecond separator.
func VTT(segments []models.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n",
			Timestamp(seg.Start, "."),
			Timestamp(seg.End, "."),
			strings.TrimSpace(seg.Text),
		)
	}
	return b.String()
}
