package feed

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const maxFilenameLength = 80

var trailingURL = regexp.MustCompile(`https?://\S+\s*$`)

// Characters illegal in storage locators, substituted with unicode
// lookalikes so titles survive as file names without losing shape.
var filenameLookalikes = strings.NewReplacer(
	"/", "∕", // division slash
	"\\", "⧵", // reverse solidus operator
	":", "꞉", // modifier letter colon
	"*", "✱", // heavy asterisk
	"?", "﹖", // small question mark
	"\"", "”", // right double quotation mark
	"<", "〈", // angle bracket
	">", "〉",
	"|", "┃", // heavy vertical bar
	"#", "＃", // fullwidth number sign
	"^", "＾",
)

// SafeFilename derives a storage-locator-safe string from an item title:
// trailing URLs stripped, illegal characters substituted, truncated to 80
// runes with an ellipsis. Pure string mapping, independent of any host
// file-system rules.
func SafeFilename(title string) string {
	name := norm.NFC.String(title)
	name = trailingURL.ReplaceAllString(name, "")
	name = filenameLookalikes.Replace(name)

	runes := []rune(name)
	if len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength]) + "…"
	}

	return strings.TrimSpace(name)
}
