package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cbegin/practice-go"
)

var (
	stringName string
	chromatic  bool
	frameSize  int
	clarity    float64
)

func init() {
	tunerCmd.Flags().StringVar(&stringName, "string", "", "tune against one string, by name (A2) or number (5)")
	tunerCmd.Flags().BoolVar(&chromatic, "chromatic", false, "compare against the nearest semitone instead of the nearest string")
	tunerCmd.Flags().IntVar(&frameSize, "frame-size", 4096, "analysis frame length in samples")
	tunerCmd.Flags().Float64Var(&clarity, "clarity", 0.6, "minimum pitch clarity (0-1) for a reading")
	rootCmd.AddCommand(tunerCmd)
}

var tunerCmd = &cobra.Command{
	Use:   "tuner",
	Short: "Run the guitar tuner",
	Long:  `Run the guitar tuner. Keys: 1-6 pick a string, a returns to automatic, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := practice.NewInput(
			practice.WithInputSampleRate(sampleRate),
			practice.WithFrameSize(frameSize),
			practice.WithInputLogger(logger),
		)
		ref := practice.GuitarReference
		if chromatic {
			ref = practice.ChromaticReference
		}
		tu, err := practice.NewTuner(in,
			practice.WithClarityThreshold(clarity),
			practice.WithReference(ref),
			practice.WithTunerLogger(logger))
		if err != nil {
			return err
		}
		if stringName != "" {
			if err := tu.SelectString(stringName); err != nil {
				return err
			}
		}
		events := tu.Watch()
		if err := tu.Start(); err != nil {
			return err
		}
		defer tu.Stop()

		_, err = tea.NewProgram(tunerModel{tuner: tu, events: events}).Run()
		return err
	},
}

type tunerEventMsg practice.TunerEvent

func waitForTunerEvent(ch <-chan practice.TunerEvent) tea.Cmd {
	return func() tea.Msg {
		return tunerEventMsg(<-ch)
	}
}

type tunerModel struct {
	tuner   *practice.Tuner
	events  <-chan practice.TunerEvent
	update  practice.TunerUpdate
	reading bool
	err     error
}

func (m tunerModel) Init() tea.Cmd {
	return waitForTunerEvent(m.events)
}

func (m tunerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tunerEventMsg:
		switch msg.Kind {
		case practice.TunerEventUpdate, practice.TunerEventTarget:
			m.update, m.reading = msg.Update, true
		case practice.TunerEventError:
			m.err = msg.Err
		}
		return m, waitForTunerEvent(m.events)
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "1", "2", "3", "4", "5", "6":
			if err := m.tuner.SelectString(key); err != nil {
				m.err = err
			}
		case "a":
			m.tuner.ClearString()
		case "r":
			if m.tuner.State() == practice.TunerIdle {
				m.err = m.tuner.Start()
			}
		}
	}
	return m, nil
}

const meterHalfWidth = 25 // cells per side, 2 cents each

var (
	inTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func meter(cents int) string {
	pos := cents / 2
	if pos < -meterHalfWidth {
		pos = -meterHalfWidth
	}
	if pos > meterHalfWidth {
		pos = meterHalfWidth
	}
	cells := make([]string, 2*meterHalfWidth+1)
	for i := range cells {
		cells[i] = dimStyle.Render("·")
	}
	cells[meterHalfWidth] = dimStyle.Render("|")
	style := offStyle
	if pos > -3 && pos < 3 {
		style = inTuneStyle
	}
	cells[pos+meterHalfWidth] = style.Render("▲")
	return strings.Join(cells, "")
}

func (m tunerModel) View() string {
	var b strings.Builder
	target := "auto"
	if s, ok := m.tuner.SelectedString(); ok {
		target = fmt.Sprintf("%s (string %d)", s.Name, s.Number)
	}
	b.WriteString(titleStyle.Render("Tuner") + dimStyle.Render("  target: "+target) + "\n\n")

	if m.reading {
		u := m.update
		style := offStyle
		if u.Status == practice.InTune {
			style = inTuneStyle
		}
		b.WriteString(fmt.Sprintf("%s  %7.2f Hz  ->  %s %+d cents  %s\n",
			titleStyle.Render(u.Note.String()), u.Frequency, u.Target, u.Cents, style.Render(u.Status.String())))
		b.WriteString(meter(u.Cents) + "\n")
	} else {
		b.WriteString(dimStyle.Render("play a string") + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render(m.err.Error()) + "\n")
		if m.tuner.State() == practice.TunerIdle {
			b.WriteString(dimStyle.Render("r to retry") + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render("1-6 string  a auto  q quit") + "\n")
	return b.String()
}
