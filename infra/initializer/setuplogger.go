package initializer

import (
	"io"
	"log/slog"

	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	icon  string
	color lipgloss.AdaptiveColor
}

var levelStyles = map[log.Level]levelStyle{
	log.DebugLevel: {"🐛", lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}},
	log.InfoLevel:  {"ℹ️", lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}},
	log.WarnLevel:  {"⚠️", lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}},
	log.ErrorLevel: {"❌", lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}},
}

// highlighted keys get the level color of their meaning
var keyColors = map[string]log.Level{
	"error":          log.ErrorLevel,
	"transaction_id": log.InfoLevel,
	"user_id":        log.InfoLevel,
	"gateway":        log.WarnLevel,
	"difference":     log.ErrorLevel,
	"op":             log.DebugLevel,
}

// NewLogger builds the charm logger behind slog and installs it as the
// default. Format "json" switches off the styling.
func NewLogger(cfg *config.Log, w io.Writer) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{}
	}
	styles := log.DefaultStyles()
	for lvl, s := range levelStyles {
		styles.Levels[lvl] = lipgloss.NewStyle().
			SetString(s.icon).
			Bold(true).
			Padding(0, 1).
			Foreground(s.color)
	}
	for key, lvl := range keyColors {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(levelStyles[lvl].color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}

	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05"
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(styles)

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
