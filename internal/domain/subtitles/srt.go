package subtitles

import (
	"strconv"
	"strings"
)

// RenderSRT renders events as plain SubRip: index, timing and text only.
func RenderSRT(events []Event) string {
	var b strings.Builder
	for i, ev := range events {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("\n")
		b.WriteString(FormatSRTTime(ev.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatSRTTime(ev.End))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(ev.Text()))
		b.WriteString("\n\n")
	}
	return b.String()
}
