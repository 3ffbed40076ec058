package eventbus

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

// loggerAdapter routes watermill logs through the service logger. Trace logs
// are folded into debug.
type loggerAdapter struct {
	logger *logging.Logger
	fields watermill.LogFields
}

func NewLoggerAdapter(logger *logging.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &loggerAdapter{logger: logger.Named("watermill")}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	args := a.args(fields)
	args = append(args, "error", err)
	a.logger.Error(msg, args...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, a.args(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	if !a.logger.Enabled(logging.LevelDebug) {
		return
	}
	a.logger.Debug(msg, a.args(fields)...)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.Debug(msg, fields)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *loggerAdapter) args(fields watermill.LogFields) []any {
	merged := a.fields.Add(fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, merged[k])
	}
	return out
}
