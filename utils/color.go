package utils

import (
	"log"
	"strconv"
	"strings"
)

// Embed colours used by audit notices and review prompts.
var (
	ColorUnmute = ParseHexColor("#74B72E")
	ColorBan    = ParseHexColor("#B90E0A")
	ColorKick   = ParseHexColor("#FCE205")
	ColorMute   = ParseHexColor("#FF7F50")
	ColorPrompt = ParseHexColor("#0492C2")
	ColorNotice = ParseHexColor("#808080")
)

// ParseHexColor parses a hex color string (like "#FACF24") into an integer for Discord embeds.
// Returns red (0xff0000) if parsing fails.
func ParseHexColor(hexColor string) int {
	hexColor = strings.TrimPrefix(hexColor, "#")
	if hexColor == "" {
		return 0xff0000
	}
	colorInt, err := strconv.ParseInt(hexColor, 16, 64)
	if err != nil {
		log.Printf("Failed to parse hex color '%s': %v", hexColor, err)
		return 0xff0000
	}
	return int(colorInt)
}
