package pattern

import (
	"strconv"
	"strings"
)

// ReadNumber reads duration and ratio literals: "N", "N/D", "/D" (1/D) and
// "-/D" (-1/D). Empty text yields def.
func ReadNumber(text string, def float64) (float64, error) {
	if text == "" {
		return def, nil
	}
	slash := strings.IndexByte(text, '/')
	if slash < 0 {
		return strconv.ParseFloat(text, 64)
	}
	num := 1.0
	switch n := text[:slash]; n {
	case "":
	case "-":
		num = -1
	default:
		v, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, err
		}
		num = v
	}
	den, err := strconv.ParseFloat(text[slash+1:], 64)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, strconv.ErrRange
	}
	return num / den, nil
}
