package comment

import "strings"

// Inline command tokens follow the Niconico convention: a space-separated
// list where each token selects a position, color or size. Unknown tokens in
// ParseCommand are ignored; IsValidCommand rejects them so clients get a
// clear error instead of silently dropped styling.

// positionTokens maps position keywords (and their Japanese synonyms) to the
// resolved position.
var positionTokens = map[string]Position{
	"ue":     PositionTop,
	"top":    PositionTop,
	"shita":  PositionBottom,
	"bottom": PositionBottom,
	"naka":   PositionScroll,
	"scroll": PositionScroll,
}

// colorTokens maps color keywords to fixed hex values.
var colorTokens = map[string]string{
	"white":  "#FFFFFF",
	"red":    "#FF0000",
	"pink":   "#FF8080",
	"orange": "#FFC000",
	"yellow": "#FFFF00",
	"green":  "#00FF00",
	"cyan":   "#00FFFF",
	"blue":   "#0000FF",
	"purple": "#C000FF",
	"black":  "#000000",
}

// sizeTokens maps size keywords to size buckets.
var sizeTokens = map[string]Size{
	"small":  SizeSmall,
	"medium": SizeMedium,
	"big":    SizeBig,
}

// IsValidCommand reports whether every token of a command string belongs to
// the recognized vocabulary. An empty command is always valid (defaults apply).
func IsValidCommand(command string) bool {
	if strings.TrimSpace(command) == "" {
		return true
	}
	for _, tok := range strings.Fields(strings.ToLower(command)) {
		if _, ok := positionTokens[tok]; ok {
			continue
		}
		if _, ok := colorTokens[tok]; ok {
			continue
		}
		if _, ok := sizeTokens[tok]; ok {
			continue
		}
		return false
	}
	return true
}

// ParseCommand resolves a command string into a Style. Rules are applied in
// fixed order (position, then color, then size) for deterministic output:
// the first recognized color wins, later position/size tokens override
// earlier ones, and unrecognized tokens are ignored rather than rejected.
func ParseCommand(command string) Style {
	style := DefaultStyle()
	if strings.TrimSpace(command) == "" {
		return style
	}

	tokens := strings.Fields(strings.ToLower(command))

	for _, tok := range tokens {
		if pos, ok := positionTokens[tok]; ok {
			style.Position = pos
		}
	}

	for _, tok := range tokens {
		if hex, ok := colorTokens[tok]; ok {
			style.Color = hex
			break
		}
	}

	for _, tok := range tokens {
		if size, ok := sizeTokens[tok]; ok {
			style.Size = size
		}
	}

	return style
}
