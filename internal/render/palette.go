package render

import "strings"

var (
	defaultPalette = []rune("  .,:-;+=*%#@▓▒░█")
	boxPalette     = []rune(" ░▒▓█")
	linesPalette   = []rune(" `.-=+*/\\|╱╲╳╬")
	sparkPalette   = []rune("  ´`^\"~:;*+×•¤°oO@#█")
	dotsPalette    = []rune(" ·∙•●")
)

var paletteNames = []string{"default", "box", "lines", "spark", "dots"}

// Palette returns the glyph ramp for name, darkest first. Unknown names fall
// back to the default ramp and report false.
func Palette(name string) ([]rune, bool) {
	switch strings.ToLower(name) {
	case "", "default":
		return defaultPalette, true
	case "box":
		return boxPalette, true
	case "lines":
		return linesPalette, true
	case "spark":
		return sparkPalette, true
	case "dots":
		return dotsPalette, true
	default:
		return defaultPalette, false
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	out := make([]string, len(paletteNames))
	copy(out, paletteNames)
	return out
}
