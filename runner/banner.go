package runner

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Banner prints the startup box to stderr so it never mixes with piped
// output.
func Banner() {
	messages := []string{
		"🏠 CM Bolt channel manager",
		"Syncing prices, availability and bookings with Avito.",
	}

	fmt.Fprintln(os.Stderr, renderBox(messages, 0))
}

func renderBox(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(0)
		if err != nil {
			width = 80
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var lines []string
	for _, message := range messages {
		lines = append(lines, wrapToWidth(message, contentWidth)...)
	}

	var b strings.Builder

	b.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range lines {
		padding := contentWidth - runewidth.StringWidth(line)
		if padding < 0 {
			padding = 0
		}

		fmt.Fprintf(&b, "║ %s%s ║\n", line, strings.Repeat(" ", padding))
	}

	b.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return b.String()
}

// wrapToWidth breaks text on display-cell width, not bytes, so emoji and
// wide runes keep the box edges aligned.
func wrapToWidth(text string, width int) []string {
	var (
		lines   []string
		current strings.Builder
		used    int
	)

	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if used+w > width {
			lines = append(lines, current.String())
			current.Reset()
			used = 0
		}

		current.WriteRune(r)
		used += w
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}
