package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/cbegin/practice-go"
)

var (
	bpm       float64
	signature string
	midiOut   string
)

func init() {
	metronomeCmd.Flags().Float64Var(&bpm, "bpm", practice.DefaultTempo, "tempo in beats per minute")
	metronomeCmd.Flags().StringVar(&signature, "signature", practice.DefaultTimeSignature.String(), "time signature, e.g. 3/4")
	metronomeCmd.Flags().StringVar(&midiOut, "midi-out", "", "also send clicks to this MIDI output port")
	rootCmd.AddCommand(metronomeCmd)
}

var metronomeCmd = &cobra.Command{
	Use:   "metronome",
	Short: "Run the metronome",
	Long: `Run the metronome. Keys: space taps the tempo, +/- and [/] change it,
s cycles the time signature, p starts and stops, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := practice.ParseTimeSignature(signature)
		if err != nil {
			return err
		}
		opts := []practice.MetronomeOption{
			practice.WithTempo(bpm),
			practice.WithTimeSignature(ts),
			practice.WithLogger(logger),
		}
		if midiOut != "" {
			defer midi.CloseDriver()
			port, err := midi.FindOutPort(midiOut)
			if err != nil {
				return fmt.Errorf("can't find MIDI output %q: %w", midiOut, err)
			}
			send, err := midi.SendTo(port)
			if err != nil {
				return err
			}
			opts = append(opts, practice.WithMIDI(send))
		}

		met, err := practice.NewMetronome(practice.NewOutput(sampleRate), opts...)
		if err != nil {
			return err
		}
		events := met.Watch()
		if err := met.Start(); err != nil {
			return err
		}
		defer met.Stop()

		_, err = tea.NewProgram(newMetronomeModel(met, events)).Run()
		return err
	},
}

type beatMsg practice.BeatEvent

func waitForBeat(ch <-chan practice.BeatEvent) tea.Cmd {
	return func() tea.Msg {
		return beatMsg(<-ch)
	}
}

type metronomeModel struct {
	met    *practice.Metronome
	events <-chan practice.BeatEvent
	beat   int // position in the measure, -1 before the first beat
	status string
}

func newMetronomeModel(met *practice.Metronome, events <-chan practice.BeatEvent) metronomeModel {
	return metronomeModel{met: met, events: events, beat: -1}
}

func (m metronomeModel) Init() tea.Cmd {
	return waitForBeat(m.events)
}

func (m metronomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case beatMsg:
		m.beat = msg.Index
		return m, waitForBeat(m.events)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m metronomeModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ":
		if bpm, ok := m.met.Tap(); ok {
			m.status = fmt.Sprintf("tapped %.0f bpm", bpm)
		} else {
			m.status = "tap again"
		}
	case "+", "=":
		m.nudge(1)
	case "-":
		m.nudge(-1)
	case "]":
		m.nudge(10)
	case "[":
		m.nudge(-10)
	case "s":
		m.cycleSignature()
	case "p":
		if m.met.Playing() {
			if err := m.met.Stop(); err != nil {
				m.status = err.Error()
			}
			m.beat = -1
		} else if err := m.met.Start(); err != nil {
			m.status = err.Error()
		}
	}
	return m, nil
}

func (m *metronomeModel) nudge(delta float64) {
	if err := m.met.SetTempo(m.met.Tempo() + delta); err != nil {
		m.status = fmt.Sprintf("tempo stays within %d-%d bpm", int(practice.MinTempo), int(practice.MaxTempo))
		return
	}
	m.status = ""
}

func (m *metronomeModel) cycleSignature() {
	current := m.met.TimeSignature()
	next := practice.CommonSignatures[0]
	for i, ts := range practice.CommonSignatures {
		if ts == current {
			next = practice.CommonSignatures[(i+1)%len(practice.CommonSignatures)]
			break
		}
	}
	if err := m.met.SetTimeSignature(next); err != nil {
		m.status = err.Error()
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	beatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m metronomeModel) View() string {
	var b strings.Builder
	ts := m.met.TimeSignature()
	b.WriteString(titleStyle.Render(fmt.Sprintf("%.0f bpm  %s", m.met.Tempo(), ts)))
	if !m.met.Playing() {
		b.WriteString(dimStyle.Render("  (stopped)"))
	}
	b.WriteString("\n\n")

	dots := make([]string, ts.BeatsPerMeasure)
	for i := range dots {
		switch {
		case i == m.beat && i == 0:
			dots[i] = accentStyle.Render("●")
		case i == m.beat:
			dots[i] = beatStyle.Render("●")
		default:
			dots[i] = dimStyle.Render("○")
		}
	}
	b.WriteString(strings.Join(dots, " "))
	b.WriteString("\n\n")
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(dimStyle.Render("space tap  +/- tempo  [/] ±10  s signature  p play/stop  q quit"))
	b.WriteString("\n")
	return b.String()
}
