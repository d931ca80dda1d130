package logfx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	PrettyModeMessageStartIndex = 38
	PrettyModeKeyMaxLength      = 25
)

var (
	ErrFailedToParseLogLevel = errors.New("failed to parse log level")
	ErrFailedToWriteLog      = errors.New("failed to write log")
)

type Handler struct {
	InitError error

	InnerHandler slog.Handler

	InnerWriter io.Writer
	InnerConfig *Config

	ScopeName string
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(scopeName string, w io.Writer, config *Config) *Handler {
	var initError error

	level, err := ParseLevel(config.Level, false)
	if err != nil {
		initError = fmt.Errorf("%w (level=%q): %w", ErrFailedToParseLogLevel, config.Level, err)
		level = new(slog.Level)
	}

	opts := &slog.HandlerOptions{ //nolint:exhaustruct
		Level:     level,
		AddSource: config.AddSource,
	}

	return &Handler{
		InitError: initError,

		InnerHandler: slog.NewJSONHandler(w, opts),
		InnerWriter:  w,
		InnerConfig:  config,

		ScopeName: scopeName,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.InnerHandler.Enabled(ctx, level)
}

func (h *Handler) PrettifyMessage(rec slog.Record) string {
	out := strings.Builder{}

	timeStr := rec.Time.Format("15:04:05.000")

	out.WriteString(Colored(ColorDimGray, timeStr))
	out.WriteRune(' ')
	out.WriteString(LevelEncoderColored(rec.Level))

	if currentLength := out.Len(); currentLength < PrettyModeMessageStartIndex {
		out.WriteString(strings.Repeat(" ", PrettyModeMessageStartIndex-currentLength))
	}

	out.WriteRune(' ')
	out.WriteString(rec.Message)

	rec.Attrs(func(attr slog.Attr) bool {
		keyLen := min(len(attr.Key), PrettyModeKeyMaxLength)

		out.WriteRune('\n')
		out.WriteRune('\t')
		out.WriteString(attr.Key)
		out.WriteString(strings.Repeat(" ", PrettyModeKeyMaxLength-keyLen))
		out.WriteString("= ")
		out.WriteString(attr.Value.String())

		return true
	})

	out.WriteString("\n\n")

	return out.String()
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	if h.InnerConfig.PrettyMode {
		if _, err := io.WriteString(h.InnerWriter, h.PrettifyMessage(rec)); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToWriteLog, err)
		}

		return nil
	}

	if err := h.InnerHandler.Handle(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToWriteLog, err)
	}

	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		InitError:    h.InitError,
		InnerHandler: h.InnerHandler.WithAttrs(attrs),
		InnerWriter:  h.InnerWriter,
		InnerConfig:  h.InnerConfig,
		ScopeName:    h.ScopeName,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		InitError:    h.InitError,
		InnerHandler: h.InnerHandler.WithGroup(name),
		InnerWriter:  h.InnerWriter,
		InnerConfig:  h.InnerConfig,
		ScopeName:    h.ScopeName,
	}
}
