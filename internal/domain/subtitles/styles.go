package subtitles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
)

const DefaultPreset = "animated"

var presets = map[string]types.StyleSpec{
	"animated": {
		FontName: "Montserrat", FontSize: 84, PrimaryColor: "#FFFFFF", AccentColor: "#FFD200",
		OutlineColor: "#000000", BackColor: "#000000", BackAlpha: 0x64, Bold: true,
		Outline: 5, Shadow: 2, BorderStyle: 1, Alignment: 2, MarginV: 320, PopIn: true,
	},
	"bold": {
		FontName: "Impact", FontSize: 96, PrimaryColor: "#FFFFFF", OutlineColor: "#000000",
		BackColor: "#000000", BackAlpha: 0x00, Bold: true, Outline: 8, Shadow: 4,
		BorderStyle: 1, Alignment: 5, MarginV: 0, Uppercase: true,
	},
	"minimal": {
		FontName: "Helvetica", FontSize: 56, PrimaryColor: "#FFFFFF", OutlineColor: "#000000",
		BackColor: "#000000", BackAlpha: 0xFF, Outline: 1, Shadow: 0,
		BorderStyle: 1, Alignment: 2, MarginV: 160,
	},
	"karaoke": {
		FontName: "Inter", FontSize: 78, PrimaryColor: "#FFD200", AccentColor: "#FFFFFF",
		OutlineColor: "#000000", BackColor: "#000000", BackAlpha: 0x64, Bold: true,
		Outline: 6, Shadow: 2, BorderStyle: 1, Alignment: 2, MarginV: 280, Karaoke: true,
	},
	"news": {
		FontName: "Arial", FontSize: 60, PrimaryColor: "#FFFFFF", OutlineColor: "#0B2A5B",
		BackColor: "#0B2A5B", BackAlpha: 0x20, Bold: true, Outline: 12, Shadow: 0,
		BorderStyle: 3, Alignment: 1, MarginV: 120,
	},
}

// PresetNames lists the preset vocabulary in a stable order.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func IsPreset(name string) bool {
	_, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Resolve turns a clip's caption style into a concrete attribute bundle. An
// empty style resolves to DefaultPreset.
func Resolve(cs types.CaptionStyle) (types.StyleSpec, error) {
	if cs.Custom != nil {
		return *cs.Custom, nil
	}
	name := strings.ToLower(strings.TrimSpace(cs.Preset))
	if name == "" {
		name = DefaultPreset
	}
	spec, ok := presets[name]
	if !ok {
		return types.StyleSpec{}, apperr.New(apperr.ErrUnknownStylePreset,
			"unknown caption style %q (want one of %s)", cs.Preset, strings.Join(PresetNames(), ", "))
	}
	return spec, nil
}

// assColor converts #RGB, #RGBA, #RRGGBB or #RRGGBBAA plus an alpha byte into
// &HAABBGGRR. CSS alpha counts opacity while ASS alpha counts transparency;
// the more transparent of the two wins.
func assColor(hex string, alpha int) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) == 3 || len(h) == 4 {
		b := make([]byte, 0, 2*len(h))
		for i := 0; i < len(h); i++ {
			b = append(b, h[i], h[i])
		}
		h = string(b)
	}
	a := alpha & 0xFF
	if len(h) == 8 {
		if css, err := strconv.ParseUint(h[6:], 16, 8); err == nil {
			a = max(a, 255-int(css))
		}
		h = h[:6]
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil || len(h) != 6 {
		h = "FFFFFF"
	}
	h = strings.ToUpper(h)
	return fmt.Sprintf("&H%02X%s%s%s", a, h[4:6], h[2:4], h[0:2])
}
