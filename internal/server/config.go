package server

import (
	"net/http"
	"strconv"
	"time"

	"chatroom-auth-service/internal/metrics"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer     *http.Server
	handlers       map[string]http.Handler
	afterShutdown  []func()
	allowedOrigins []string
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           uint16        `env:"PORT" envDefault:"9000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		if cfg.RequestTimeout > 0 {
			TimeoutHandler(cfg.RequestTimeout, "Request timed out").apply(c)
		}
		if len(cfg.AllowedOrigins) > 0 {
			AllowedOrigins(cfg.AllowedOrigins...).apply(c)
		}
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// AllowedOrigins enables CORS for the API endpoints from the listed origins
func AllowedOrigins(origins ...string) Option {
	return optionFunc(func(c *config) {
		c.allowedOrigins = append(c.allowedOrigins, origins...)
	})
}

// TimeoutHandler wraps each handler in handlers map in http.TimeoutHandler with provided duration and message
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = http.TimeoutHandler(h, d, msg)
		}
	})
}

// applyEnforcePOSTJSON wraps each handler in handlers map with enforcePOSTJSON middleware
func applyEnforcePOSTJSON() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = enforcePOSTJSON(h)
		}
	})
}

// applyMetrics wraps each handler in handlers map with request duration metrics
func applyMetrics() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = metrics.Middleware(h)
		}
	})
}

// applyLog wraps each http.Handler in handlers map with log middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = log(h, logger)
		}
	})
}

// registerHandlers iterates over a handlers map and registers each handler for newly initialized http.ServeMux
// that http.ServeMux is used as a http.Handler for http.Server in config struct
func registerHandlers() Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.handlers {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}

// applyRecovery turns panics into 500 responses and logs them
func applyRecovery(logger *zap.SugaredLogger) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Handler = handlers.RecoveryHandler(
			handlers.RecoveryLogger(recoveryLogger{logger: logger}),
			handlers.PrintRecoveryStack(true),
		)(c.httpServer.Handler)
	})
}

// applyCORS wraps the server handler with CORS support when origins are configured
func applyCORS() Option {
	return optionFunc(func(c *config) {
		if len(c.allowedOrigins) == 0 {
			return
		}
		c.httpServer.Handler = handlers.CORS(
			handlers.AllowedOrigins(c.allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodPost}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(c.httpServer.Handler)
	})
}
