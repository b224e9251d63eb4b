package chart

// NamedColor is a palette entry.
type NamedColor struct {
	Name string
	Hex  string
}

// ColorPalette is the default, ordered trace palette. Trace i gets color i modulo the palette size.
var ColorPalette = []NamedColor{ //nolint:gochecknoglobals // exported for hosts, treated as read-only
	{Name: "Blue", Hex: "#356AFF"},
	{Name: "Red", Hex: "#E92828"},
	{Name: "Green", Hex: "#3BD973"},
	{Name: "Purple", Hex: "#604FE9"},
	{Name: "Cyan", Hex: "#50F5ED"},
	{Name: "Orange", Hex: "#FB8D3D"},
	{Name: "Light Blue", Hex: "#799CFF"},
	{Name: "Lilac", Hex: "#B554FF"},
	{Name: "Light Green", Hex: "#8CFFB4"},
	{Name: "Brown", Hex: "#A55F2A"},
	{Name: "Black", Hex: "#000000"},
	{Name: "Gray", Hex: "#494949"},
	{Name: "Pink", Hex: "#FF7DE3"},
	{Name: "Dark Blue", Hex: "#002FB4"},
}

// Palette is an ordered list of hex colors.
type Palette []string

// DefaultPalette returns the hex colors of [ColorPalette].
func DefaultPalette() Palette {
	p := make(Palette, 0, len(ColorPalette))
	for _, c := range ColorPalette {
		p = append(p, c.Hex)
	}

	return p
}

// Color returns the color for the trace at index i.
func (p Palette) Color(i int) string {
	if len(p) == 0 {
		return ""
	}

	return p[i%len(p)]
}
