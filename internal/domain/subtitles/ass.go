package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RenderASS renders events as an Advanced SubStation track sized for a
// width x height frame.
func RenderASS(events []Event, spec Spec, width, height int) string {
	var b strings.Builder
	b.WriteString(assHeader(spec, width, height))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ev := range events {
		b.WriteString("Dialogue: 0,")
		b.WriteString(FormatASSTime(ev.Start))
		b.WriteString(",")
		b.WriteString(FormatASSTime(ev.End))
		b.WriteString(",Caption,,0,0,0,,")
		if spec.PopIn {
			b.WriteString(`{\fad(80,0)\fscx115\fscy115\t(0,150,\fscx100\fscy100)}`)
		}
		if spec.Karaoke {
			writeKaraoke(&b, ev, spec.Uppercase)
		} else {
			b.WriteString(caseFor(sanitizeASS(ev.Text()), spec.Uppercase))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderASSText renders one event carrying text for the whole window, used
// when the transcript has no per-word timings.
func RenderASSText(text string, dur float64, spec Spec, width, height int) string {
	spec.Karaoke = false
	ev := Event{Start: 0, End: dur}
	var b strings.Builder
	b.WriteString(assHeader(spec, width, height))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	b.WriteString("Dialogue: 0,")
	b.WriteString(FormatASSTime(ev.Start))
	b.WriteString(",")
	b.WriteString(FormatASSTime(ev.End))
	b.WriteString(",Caption,,0,0,0,,")
	b.WriteString(caseFor(sanitizeASS(text), spec.Uppercase))
	b.WriteString("\n")
	return b.String()
}

func writeKaraoke(b *strings.Builder, ev Event, upper bool) {
	for i, w := range ev.Words {
		// \k durations include the gap to the next word so highlights stay
		// contiguous.
		end := w.End
		if i+1 < len(ev.Words) {
			end = ev.Words[i+1].Start
		}
		cs := int(math.Floor((end-w.Start)*100 + floorEpsilon))
		if cs < 1 {
			cs = 1
		}
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(b, "{\\k%d}%s", cs, caseFor(sanitizeASS(w.Word), upper))
	}
}

func assHeader(spec Spec, width, height int) string {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	bold := 0
	if spec.Bold {
		bold = -1
	}
	italic := 0
	if spec.Italic {
		italic = -1
	}
	secondary := spec.AccentColor
	if secondary == "" {
		secondary = spec.PrimaryColor
	}
	back := spec.BackColor
	if back == "" {
		back = "#000000"
	}
	style := fmt.Sprintf("Style: Caption,%s,%d,%s,%s,%s,%s,%d,%d,0,0,100,100,0,0,%d,%s,%s,%d,80,80,%d,1",
		assField(spec.FontName), spec.FontSize,
		assColor(spec.PrimaryColor, 0), assColor(secondary, 0),
		assColor(spec.OutlineColor, 0), assColor(back, spec.BackAlpha),
		bold, italic, spec.BorderStyle,
		trimFloat(spec.Outline), trimFloat(spec.Shadow),
		spec.Alignment, spec.MarginV,
	)
	return strings.Join([]string{
		"[Script Info]",
		"ScriptType: v4.00+",
		fmt.Sprintf("PlayResX: %d", width),
		fmt.Sprintf("PlayResY: %d", height),
		"WrapStyle: 0",
		"ScaledBorderAndShadow: yes",
		"",
		"[V4+ Styles]",
		"Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding",
		style,
	}, "\n")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

func caseFor(s string, upper bool) string {
	if upper {
		return strings.ToUpper(s)
	}
	return s
}

// assField strips the characters that would end a Style field or line.
func assField(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '\r', '\n':
			return -1
		}
		return r
	}, s)
	if s = strings.TrimSpace(s); s == "" {
		return "Arial"
	}
	return s
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
