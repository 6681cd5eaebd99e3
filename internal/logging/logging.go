package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const TimeFormat = "2006-01-02 15:04:05.999"

// New создает консольный логгер с уровнем level ("debug", "info", ...).
func New(level string) (*zap.Logger, zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevel()
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		return nil, atom, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.Level = atom
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(TimeFormat)
	config.DisableStacktrace = true
	config.Sampling = nil
	logger, err := config.Build()
	if err != nil {
		return nil, atom, err
	}
	return logger, atom, nil
}

// GinLogger пишет одну запись на запрос. Уровень записи зависит от исхода
// запроса, extra добавляет поля обработчиков (представление, вызывающий).
func GinLogger(logger *zap.Logger, extra func(*gin.Context) []zap.Field) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ce := logger.Check(requestLevel(status, len(c.Errors) > 0), c.Request.Method+" "+route)
		if ce == nil {
			return
		}
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("uri", c.Request.URL.RequestURI()),
			zap.Duration("took", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if extra != nil {
			fields = append(fields, extra(c)...)
		}
		ce.Write(fields...)
	}
}

func requestLevel(status int, failed bool) zapcore.Level {
	switch {
	case failed, status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}
