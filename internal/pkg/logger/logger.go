package logger

import (
	"os"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File enables a rotated JSON log next to stdout when set.
	File string
}

func InitLogger(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrap(err, "zapcore.ParseLevel failed: ")
		}
		level = parsed
	}

	var logWriter = zapcore.AddSync(os.Stdout)
	if opts.File != "" {
		logWriter = zapcore.NewMultiWriteSyncer(logWriter, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		}))
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		logWriter,
		level,
	)
	return zap.New(logCore, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}
