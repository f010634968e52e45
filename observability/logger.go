package observability

import (
	"io"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationScope = "shop-inventory.manual"

// NewLogger writes JSON to stdout at level. When bridge is set the same entries are also
// handed to the global OTel logger provider.
func NewLogger(level zapcore.Level, bridge bool) *zap.Logger {
	return newLogger(os.Stdout, level, bridge)
}

func newLogger(w io.Writer, level zapcore.Level, bridge bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	if bridge {
		core = zapcore.NewTee(core, otelzap.NewCore(instrumentationScope,
			otelzap.WithLoggerProvider(global.GetLoggerProvider()),
		))
	}
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", ServiceName)),
	)
}
