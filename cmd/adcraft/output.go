package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/adcraft/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printCampaign renders a campaign for the terminal.
func printCampaign(w io.Writer, c storage.Campaign) {
	fmt.Fprintf(w, "%s  %s\n\n", colorize(colorBold, "Campaign "+c.ID), c.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(w, c.Text)
	if len(c.Images) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Images:"))
	for _, img := range c.Images {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorCyan, "["+img.Description+"]"), img.URL)
	}
}

// campaignLine is the one-line summary used by `campaigns list`.
func campaignLine(c storage.Campaign) string {
	text := strings.Join(strings.Fields(c.Text), " ")
	if utf8.RuneCountInString(text) > 72 {
		text = string([]rune(text)[:72]) + "..."
	}
	return fmt.Sprintf("%s  %s  %s",
		colorize(colorCyan, c.ID),
		c.CreatedAt.Local().Format(time.DateTime),
		text,
	)
}
