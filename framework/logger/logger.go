// Package logger builds the zap logger used by the container tree.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
)

// New creates a zap logger for cfg. Production environments and the json
// format get the production encoder; everything else gets the development one.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.App.IsProduction() || cfg.Log.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Log.Format == "console" {
		zc.Encoding = "console"
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("logger: build: %w", err)
	}
	return l.With(zap.String("app", cfg.App.Name)), nil
}

// WithContainer tags l with the container's name and id.
func WithContainer(l *zap.Logger, c *container.Container) *zap.Logger {
	return l.With(zap.String("container", c.Name()), zap.String("container_id", c.ID()))
}

// Extension binds a *zap.Logger tagged with the owning container into every
// container of the tree it is installed on.
//
//	err := root.Extend(&logger.Extension{Base: log})
//	log := container.MustResolve[*zap.Logger](child)
type Extension struct {
	// Base is the untagged logger. Nil uses each container's own logger.
	Base *zap.Logger
}

func (e *Extension) Extend(c *container.Container) error {
	l := c.Logger()
	if e.Base != nil {
		l = WithContainer(e.Base, c)
	}
	return container.Bind[*zap.Logger](c).ToInstance(l)
}
