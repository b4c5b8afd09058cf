package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Text subtypes
const (
	SubtypeHeading    = "heading"
	SubtypeSubheading = "subheading"
	SubtypeListItem   = "list-item"
	SubtypeTitle      = "title"
	SubtypeSymbol     = "symbol"
	SubtypeParagraph  = "paragraph"
)

// Classification thresholds. Heights are glyph heights in user space.
const (
	HeadingHeight    = 18.0
	SubheadingHeight = 14.0
	TitleMinLength   = 2
	SymbolMaxLength  = 3
)

var (
	listItemPattern = regexp.MustCompile(`^\d+\.?\s`)
	titlePattern    = regexp.MustCompile(`^[A-Z\s]+$`)
)

// Classify assigns a text subtype from glyph height and content alone.
// Rules are evaluated in order and the first match wins.
func Classify(height float64, content string) string {
	text := strings.TrimSpace(content)
	length := utf8.RuneCountInString(text)

	switch {
	case height > HeadingHeight:
		return SubtypeHeading
	case height > SubheadingHeight:
		return SubtypeSubheading
	case listItemPattern.MatchString(text):
		return SubtypeListItem
	case titlePattern.MatchString(text) && length > TitleMinLength:
		return SubtypeTitle
	case length < SymbolMaxLength:
		return SubtypeSymbol
	default:
		return SubtypeParagraph
	}
}
