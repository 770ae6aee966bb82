package tab

import (
	"strconv"
	"strings"
)

// List-valued cells use the bracketed form the upstream summarizer emits:
// [PF00270, PF00271] or ['PF00270', 'PF00271']. Elements never contain
// tabs or commas, so a comma split is sufficient.

// ParseList parses a bracketed list cell into its elements. Empty or
// bare-bracket cells yield nil.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, "'\"")
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseFloatList parses a bracketed list of numbers. Unparseable elements
// are reported through ok=false; the parsed prefix is still returned.
func ParseFloatList(s string) ([]float64, bool) {
	elems := ParseList(s)
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		v, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return out, false
		}
		out = append(out, v)
	}
	return out, true
}

// RenderList renders elements as a bracketed list cell.
func RenderList(elems []string) string {
	return "[" + strings.Join(elems, ", ") + "]"
}

// RenderFloatList renders numbers as a bracketed list cell with compact
// formatting.
func RenderFloatList(vals []float64) string {
	elems := make([]string, len(vals))
	for i, v := range vals {
		elems[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return RenderList(elems)
}
