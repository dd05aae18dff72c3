package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cbegin/practice-go"
)

var frets int

func init() {
	fretboardCmd.Flags().IntVar(&frets, "frets", 12, "number of frets to show")
	rootCmd.AddCommand(fretboardCmd)
}

var fretboardCmd = &cobra.Command{
	Use:   "fretboard",
	Short: "Print the notes on each fret in standard tuning",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderFretboard(frets)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var (
	cellStyle    = lipgloss.NewStyle().Width(4)
	openStyle    = cellStyle.Bold(true).Foreground(lipgloss.Color("14"))
	naturalStyle = cellStyle.Foreground(lipgloss.Color("15"))
	sharpStyle   = cellStyle.Foreground(lipgloss.Color("8"))
)

// renderFretboard draws the high E string on top, as tablature does.
func renderFretboard(n int) (string, error) {
	var b strings.Builder
	b.WriteString(cellStyle.Render(""))
	for f := 0; f <= n; f++ {
		b.WriteString(sharpStyle.Render(fmt.Sprint(f)))
	}
	b.WriteString("\n")

	for i := len(practice.StandardTuning) - 1; i >= 0; i-- {
		b.WriteString(cellStyle.Render(fmt.Sprint(practice.StandardTuning[i].Number)))
		for f := 0; f <= n; f++ {
			note, _, err := practice.NoteAt(i, f)
			if err != nil {
				return "", err
			}
			style := naturalStyle
			switch {
			case f == 0:
				style = openStyle
			case strings.Contains(note.Name(), "#"):
				style = sharpStyle
			}
			b.WriteString(style.Render(note.String()))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
