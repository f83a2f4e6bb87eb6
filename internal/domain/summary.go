package domain

import "strings"

// PartKind distinguishes headings from body text in a formatted summary.
type PartKind int

const (
	PartParagraph PartKind = iota
	PartHeader
)

// SummaryPart is one block of a formatted review summary.
type SummaryPart struct {
	Kind  PartKind
	Lines []string
}

// IsHeader is a template helper.
func (p SummaryPart) IsHeader() bool { return p.Kind == PartHeader }

// FallbackSummary is shown whenever summarization fails.
const FallbackSummary = `### Review summary:

The automatic summary of audience reviews is not available right now.

- Open the Reviews tab to read what viewers wrote about this movie.
- Summaries are generated on demand and may take a moment once the service is back.

### Overall opinion:
Try again later to see a condensed view of the reviews.`

// FormatSummary turns the markdown-like summary text into header and paragraph
// blocks. Heading markers (###) and bold markers (**) are stripped; blocks are
// separated by blank lines and keep their inner line breaks.
func FormatSummary(text string) []SummaryPart {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parts []SummaryPart
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		first := strings.TrimSpace(lines[0])

		// A heading directly followed by text (no blank line) splits into two parts.
		if strings.HasPrefix(first, "#") {
			parts = append(parts, SummaryPart{Kind: PartHeader, Lines: []string{cleanLine(first)}})
			lines = lines[1:]
			if len(lines) == 0 {
				continue
			}
		}

		cleaned := make([]string, 0, len(lines))
		for _, line := range lines {
			cleaned = append(cleaned, cleanLine(line))
		}
		kind := PartParagraph
		if len(cleaned) == 1 && isTitleLine(cleaned[0]) {
			kind = PartHeader
		}
		parts = append(parts, SummaryPart{Kind: kind, Lines: cleaned})
	}
	return parts
}

func cleanLine(line string) string {
	line = strings.TrimLeft(strings.TrimSpace(line), "#")
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

// isTitleLine matches short single-line blocks ending in a colon, the shape
// the summarizer uses for section titles.
func isTitleLine(line string) bool {
	return strings.HasSuffix(line, ":") && len([]rune(line)) <= 60 && !strings.HasPrefix(line, "-")
}
