package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// floorEpsilon keeps values like 61.23 (stored as 61.229999…) from flooring a
// whole unit low. It is far below one centisecond.
const floorEpsilon = 1e-6

// FormatASSTime renders seconds as H:MM:SS.CC, flooring to the centisecond.
func FormatASSTime(sec float64) string {
	cs := floorUnits(sec, 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm, flooring to the millisecond.
func FormatSRTTime(sec float64) string {
	ms := floorUnits(sec, 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func floorUnits(sec float64, perSecond float64) int64 {
	if sec <= 0 || math.IsNaN(sec) {
		return 0
	}
	return int64(math.Floor(sec*perSecond + floorEpsilon))
}

// ParseASSTime parses H:MM:SS.CC.
func ParseASSTime(s string) (float64, error) {
	return parseClock(s, ".", 100)
}

// ParseSRTTime parses HH:MM:SS,mmm.
func ParseSRTTime(s string) (float64, error) {
	return parseClock(s, ",", 1000)
}

func parseClock(s, fracSep string, perSecond int) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse time %q: want H:MM:SS%sF", s, fracSep)
	}
	secFrac := strings.SplitN(parts[2], fracSep, 2)
	if len(secFrac) != 2 {
		return 0, fmt.Errorf("parse time %q: missing %q fraction", s, fracSep)
	}
	vals := make([]int, 4)
	for i, p := range []string{parts[0], parts[1], secFrac[0], secFrac[1]} {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse time %q: bad field %q", s, p)
		}
		vals[i] = n
	}
	if vals[1] > 59 || vals[2] > 59 || vals[3] >= perSecond {
		return 0, fmt.Errorf("parse time %q: field out of range", s)
	}
	total := vals[0]*3600 + vals[1]*60 + vals[2]
	return float64(total) + float64(vals[3])/float64(perSecond), nil
}
