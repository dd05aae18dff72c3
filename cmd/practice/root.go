package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cbegin/practice-go"
)

var (
	sampleRate int
	logLevel   string
	logFile    string

	logger  = logrus.New()
	logSink *os.File
)

var rootCmd = &cobra.Command{
	Use:   "practice",
	Short: "Metronome and guitar tuner",
	Long: `practice drives a sample-accurate metronome and a guitar tuner from the
audio hardware clock. Logs are discarded unless --log-file is given, since
the terminal belongs to the interactive view.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&sampleRate, "sample-rate", practice.DefaultSampleRate, "audio sample rate in Hz")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file")
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if logFile == "" {
		logger.SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logSink = f
	logger.SetOutput(f)
	return nil
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
