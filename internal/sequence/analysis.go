package sequence

type Composition struct {
	A     int `json:"a"`
	C     int `json:"c"`
	G     int `json:"g"`
	T     int `json:"t"`
	N     int `json:"n"`
	Other int `json:"other"`
}

func Compose(s string) Composition {
	var c Composition
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'a':
			c.A++
		case 'C', 'c':
			c.C++
		case 'G', 'g':
			c.G++
		case 'T', 't':
			c.T++
		case 'N', 'n':
			c.N++
		default:
			c.Other++
		}
	}
	return c
}

// GCContent returns the G+C share of s as a percentage of its full length.
func GCContent(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	c := Compose(s)
	return float64(c.G+c.C) / float64(len(s)) * 100
}

type Variant struct {
	Position  int    `json:"position"`
	Reference string `json:"reference"`
	Alternate string `json:"alternate"`
}

// Diff compares ref and alt position by position. No alignment is attempted:
// bases past the shorter sequence are reported against "-".
func Diff(ref, alt string) []Variant {
	n := len(ref)
	if len(alt) > n {
		n = len(alt)
	}
	var out []Variant
	for i := 0; i < n; i++ {
		r, a := "-", "-"
		if i < len(ref) {
			r = ref[i : i+1]
		}
		if i < len(alt) {
			a = alt[i : i+1]
		}
		if r != a {
			out = append(out, Variant{Position: i, Reference: r, Alternate: a})
		}
	}
	return out
}
