package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	level log.Level
	icon  string
	color string
	key   string
}

var levelStyles = []levelStyle{
	{log.ErrorLevel, "❌", "#FF6B6B", "error"},
	{log.WarnLevel, "⚠️", "#EE6FF8", "warn"},
	{log.InfoLevel, "ℹ️", "#04B575", "info"},
	{log.DebugLevel, "🐛", "#7E57C2", "debug"},
}

// Keys rendered in the debug accent so ids stand out from values.
var accentKeys = []string{"prefix", "caller", "time", "txn_id", "operation_id", "order_id", "user_id"}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg *config.Log) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text", TimeFormat: "2006-01-02 15:04:05", Prefix: "[mlmcore]"}
	}

	styles := log.DefaultStyles()
	bold := lipgloss.NewStyle().Bold(true)
	for _, ls := range levelStyles {
		color := lipgloss.AdaptiveColor{Light: ls.color, Dark: ls.color}
		styles.Levels[ls.level] = lipgloss.NewStyle().
			SetString(ls.icon).
			Bold(true).
			Padding(0, 1).
			Foreground(color)
		styles.Keys[ls.key] = lipgloss.NewStyle().Foreground(color)
		styles.Values[ls.key] = bold
	}
	accent := lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
	for _, k := range accentKeys {
		styles.Keys[k] = lipgloss.NewStyle().Foreground(accent)
		styles.Values[k] = bold
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(styles)

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
