package logger

import (
	"io"

	"github.com/rs/zerolog"
)

type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	z.logger.Info().Str("component", component).Fields(fields).Msg(message)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	z.logger.Error().Str("component", component).Err(err).Fields(fields).Msg("operation failed")
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	z.logger.Warn().Str("component", component).Fields(fields).Msg(message)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	z.logger.Debug().Str("component", component).Fields(fields).Msg(message)
}

// Enabled reports whether events at level would be written.
func (z *ZerologAdapter) Enabled(level zerolog.Level) bool {
	return z.logger.GetLevel() <= level && level != zerolog.Disabled
}
