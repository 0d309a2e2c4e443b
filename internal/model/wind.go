package model

import (
	"strconv"
	"strings"
)

// WindDirection is one of the 8 compass points.
type WindDirection string

const (
	WindN  WindDirection = "N"
	WindNE WindDirection = "NE"
	WindE  WindDirection = "E"
	WindSE WindDirection = "SE"
	WindS  WindDirection = "S"
	WindSW WindDirection = "SW"
	WindW  WindDirection = "W"
	WindNW WindDirection = "NW"
)

var windDirections = []WindDirection{WindN, WindNE, WindE, WindSE, WindS, WindSW, WindW, WindNW}

var windArrows = map[WindDirection]string{
	WindN: "↑", WindNE: "↗", WindE: "→", WindSE: "↘",
	WindS: "↓", WindSW: "↙", WindW: "←", WindNW: "↖",
}

// Valid reports whether d is a known compass point.
func (d WindDirection) Valid() bool {
	_, ok := windArrows[d]
	return ok
}

// Arrow returns the presentation glyph for the direction, or "" if unknown.
func (d WindDirection) Arrow() string {
	return windArrows[d]
}

// Wind describes a sustainable wind window for a spot: a compass direction
// with an inclusive speed range in m/s.
type Wind struct {
	ID        *int64        `json:"id,omitempty"`
	Direction WindDirection `json:"direction"`
	MinSpeed  int           `json:"minSpeed"`
	MaxSpeed  int           `json:"maxSpeed"`
}

// NormalizeWinds treats the slice as a set keyed by direction: unknown
// directions are dropped, later entries for the same direction win, and the
// result is sorted in compass order so two equal sets compare equal.
func NormalizeWinds(winds []Wind) []Wind {
	byDir := make(map[WindDirection]Wind, len(winds))
	for _, w := range winds {
		if !w.Direction.Valid() {
			continue
		}
		if w.MaxSpeed < w.MinSpeed {
			w.MinSpeed, w.MaxSpeed = w.MaxSpeed, w.MinSpeed
		}
		byDir[w.Direction] = w
	}

	out := make([]Wind, 0, len(byDir))
	for _, d := range windDirections {
		if w, ok := byDir[d]; ok {
			out = append(out, w)
		}
	}
	return out
}

// ParseWindString converts the legacy delimited wind representation
// ("N 2-6, SE 3-8") into the structured form. Tokens that do not parse are
// skipped; a bare direction token gets a zero speed range. The parse is total:
// any input yields a (possibly empty) normalized set.
func ParseWindString(s string) []Wind {
	var out []Wind
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		fields := strings.Fields(strings.TrimSpace(tok))
		if len(fields) == 0 {
			continue
		}
		dir := WindDirection(strings.ToUpper(fields[0]))
		if !dir.Valid() {
			continue
		}
		w := Wind{Direction: dir}
		if len(fields) > 1 {
			lo, hi, ok := parseSpeedRange(fields[1])
			if ok {
				w.MinSpeed, w.MaxSpeed = lo, hi
			}
		}
		out = append(out, w)
	}
	return NormalizeWinds(out)
}

func parseSpeedRange(s string) (int, int, bool) {
	parts := strings.SplitN(s, "-", 2)
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || lo < 0 {
		return 0, 0, false
	}
	hi := lo
	if len(parts) == 2 {
		hi, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || hi < 0 {
			return 0, 0, false
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// WindString renders the structured set back into the legacy delimited form,
// in compass order.
func WindString(winds []Wind) string {
	winds = NormalizeWinds(winds)
	parts := make([]string, 0, len(winds))
	for _, w := range winds {
		parts = append(parts, string(w.Direction)+" "+strconv.Itoa(w.MinSpeed)+"-"+strconv.Itoa(w.MaxSpeed))
	}
	return strings.Join(parts, ", ")
}
