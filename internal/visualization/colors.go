package visualization

const (
	// AccentColor marks the optimised (or only) structure.
	AccentColor = "#FD9D0D"
	// MutedColor marks the reference structure drawn behind the others.
	MutedColor = "#CCCCCC"
	// CarbonColor replaces the usual grey carbon in per-element colouring.
	CarbonColor = "#1B9E77"

	referenceOpacity = 0.5
)

// AssignColors returns the flat colour of each of n descriptors. One
// descriptor gets the accent colour; with more, the first is muted and the
// rest share the accent.
func AssignColors(n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []string{AccentColor}
	}
	colors := make([]string, n)
	colors[0] = MutedColor
	for i := 1; i < n; i++ {
		colors[i] = AccentColor
	}
	return colors
}

type elementColor struct {
	symbol string
	color  string
}

// elementColors is a CPK-style palette applied in order.
var elementColors = []elementColor{
	{"C", CarbonColor},
	{"H", "#FFFFFF"},
	{"D", "#FFFFC0"},
	{"T", "#FFFFA0"},
	{"HE", "#D9FFFF"},
	{"LI", "#CC80FF"},
	{"BE", "#C2FF00"},
	{"B", "#FFB5B5"},
	{"N", "#3050F8"},
	{"O", "#FF0D0D"},
	{"F", "#90E050"},
	{"NE", "#B3E3F5"},
	{"NA", "#AB5CF2"},
	{"MG", "#8AFF00"},
	{"AL", "#BFA6A6"},
	{"SI", "#F0C8A0"},
	{"P", "#FF8000"},
	{"S", "#FFFF30"},
	{"CL", "#1FF01F"},
	{"AR", "#80D1E3"},
	{"K", "#8F40D4"},
	{"CA", "#3DFF00"},
	{"SC", "#E6E6E6"},
	{"TI", "#BFC2C7"},
	{"V", "#A6A6AB"},
	{"CR", "#8A99C7"},
	{"MN", "#9C7AC7"},
	{"FE", "#E06633"},
	{"CO", "#F090A0"},
	{"NI", "#50D050"},
	{"CU", "#C88033"},
	{"ZN", "#7D80B0"},
	{"GA", "#C28F8F"},
	{"GE", "#668F8F"},
	{"AS", "#BD80E3"},
	{"SE", "#FFA100"},
	{"BR", "#A62929"},
	{"KR", "#5CB8D1"},
	{"RB", "#702EB0"},
	{"SR", "#00FF00"},
	{"Y", "#94FFFF"},
	{"ZR", "#94E0E0"},
	{"NB", "#73C2C9"},
	{"MO", "#54B5B5"},
	{"TC", "#3B9E9E"},
	{"RU", "#248F8F"},
	{"RH", "#0A7D8C"},
	{"PD", "#006985"},
	{"AG", "#C0C0C0"},
	{"CD", "#FFD98F"},
	{"IN", "#A67573"},
	{"SN", "#668080"},
	{"SB", "#9E63B5"},
	{"TE", "#D47A00"},
	{"I", "#940094"},
	{"XE", "#940094"},
	{"CS", "#57178F"},
	{"BA", "#00C900"},
	{"*", "#FFFFFF"},
}
