// Package logging builds the zap logger shared by every component.
package logging

import (
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the format, level and optional file output of the logger.
type Config struct {
	Level       string `default:"info"`
	Development bool
	// File, when set, receives a JSON copy of every entry. It is rotated
	// once it reaches MaxSizeMB, keeping MaxFiles old files.
	File      string
	MaxSizeMB int `default:"10"`
	MaxFiles  int `default:"3"`
}

// Logger is the sugared logger plus the resources to release on exit.
type Logger struct {
	*zap.SugaredLogger
	rotator *rotator.Rotator
}

// New builds a production (JSON) or development (console) logger writing to
// stderr, tee'd to a rotating file when cfg.File is set.
func New(cfg Config) (*Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
		}
		zc.Level = level
	}

	var r *rotator.Rotator
	var opts []zap.Option
	if cfg.File != "" {
		var err error
		r, err = newRotator(cfg)
		if err != nil {
			return nil, err
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(r),
			zc.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zc.Build(opts...)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return &Logger{SugaredLogger: logger.Sugar(), rotator: r}, nil
}

func newRotator(cfg Config) (*rotator.Rotator, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	r, err := rotator.New(cfg.File, int64(maxSize*1024), false, cfg.MaxFiles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file rotator")
	}
	return r, nil
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
