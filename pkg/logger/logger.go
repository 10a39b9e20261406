// Package logger builds the zerolog logger shared by the poller, the exporter
// and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

var (
	timestampColor = color.New(color.FgHiCyan, color.Italic)
	fieldKeyColor  = color.New(color.FgHiYellow)
	fieldValColor  = color.New(color.FgCyan)
	messageColor   = color.New(color.FgWhite)
)

var levelLabels = map[string]struct {
	text  string
	color *color.Color
}{
	zerolog.LevelTraceValue: {"TRAC", color.New(color.FgHiBlack, color.Bold)},
	zerolog.LevelDebugValue: {"DEBG", color.New(color.FgHiBlue, color.Bold)},
	zerolog.LevelInfoValue:  {"INFO", color.New(color.FgHiGreen, color.Bold)},
	zerolog.LevelWarnValue:  {"WARN", color.New(color.FgHiYellow, color.Bold)},
	zerolog.LevelErrorValue: {"ERRO", color.New(color.FgHiRed, color.Bold)},
	zerolog.LevelFatalValue: {"FATL", color.New(color.FgHiRed, color.Bold)},
	zerolog.LevelPanicValue: {"PANC", color.New(color.FgWhite, color.BgRed, color.Bold)},
}

// Config selects level and output format.
type Config struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	Color      bool   `yaml:"color"`
	TimeLayout string `yaml:"time_layout"`
}

// DefaultConfig logs at info level to a coloured console.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Color:      true,
		TimeLayout: time.RFC3339,
	}
}

// New creates a logger writing to out, or stderr when out is nil.
func New(cfg Config, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.TimeLayout == "" {
		cfg.TimeLayout = time.RFC3339
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	if cfg.JSON {
		return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
	}

	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !cfg.Color,
		TimeFormat: cfg.TimeLayout,
		PartsOrder: []string{"time", "level", "message"},
	}
	if cfg.Color {
		w.FormatLevel = formatLevel
		w.FormatTimestamp = func(i any) string { return timestampColor.Sprint(i) }
		w.FormatMessage = func(i any) string { return messageColor.Sprintf("│ %v", i) }
		w.FormatFieldName = func(i any) string { return fieldKeyColor.Sprintf("%s=", i) }
		w.FormatFieldValue = func(i any) string { return fieldValColor.Sprint(i) }
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func formatLevel(i any) string {
	s, _ := i.(string)
	l, ok := levelLabels[s]
	if !ok {
		return color.New(color.FgHiWhite).Sprint(" UNKN ")
	}
	return l.color.Sprintf(" %s ", l.text)
}
