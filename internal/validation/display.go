package validation

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// maxShownEntries bounds how many offending entries one response prints.
const maxShownEntries = 10

var (
	errLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	okLabel  = color.New(color.FgGreen).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

// Show writes failing responses to w, grouped under their owning item,
// with offending entries capped at maxShownEntries per response.
func Show(w io.Writer, rs []Response) {
	var lastItem string
	first := true
	for _, r := range Errors(rs) {
		if first || r.Item != lastItem {
			name := r.Item
			if name == "" {
				name = "general"
			}
			fmt.Fprintf(w, "%s:\n", name)
			lastItem, first = r.Item, false
		}

		if r.File != "" {
			fmt.Fprintf(w, "  %s %s (%s)\n", errLabel("✗"), r.Msg, dim(r.File))
		} else {
			fmt.Fprintf(w, "  %s %s\n", errLabel("✗"), r.Msg)
		}
		for i, entry := range r.Data {
			if i == maxShownEntries {
				fmt.Fprintf(w, "      %s\n", dim(fmt.Sprintf("... and %d more", len(r.Data)-maxShownEntries)))
				break
			}
			fmt.Fprintf(w, "      %s\n", entry)
		}
	}
}

// ShowValid writes a green confirmation line to w.
func ShowValid(w io.Writer, location string) {
	fmt.Fprintf(w, "%s submission at %s is valid\n", okLabel("✓"), location)
}
