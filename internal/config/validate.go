package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate reports every invalid field at once.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateCallback(&cfg.Callback)...)
	errs = append(errs, validateLog(&cfg.Log)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(field, value string, allowed ...string) ValidationErrors {
	if slices.Contains(allowed, value) {
		return nil
	}
	return ValidationErrors{{
		Field:   field,
		Message: fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), value),
	}}
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors
	if cfg.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: "is required"})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server", Message: "timeouts must be non-negative"})
	}
	return errs
}

func validateStore(cfg *StoreConfig) ValidationErrors {
	errs := oneOf("store.driver", cfg.Driver, "memory", "sqlite", "postgres")
	if cfg.Driver != "memory" && cfg.DSN == "" {
		errs = append(errs, ValidationError{Field: "store.dsn", Message: "is required for " + cfg.Driver})
	}
	return errs
}

func validateQueue(cfg *QueueConfig) ValidationErrors {
	errs := oneOf("queue.mode", cfg.Mode, "local", "qstash")
	switch cfg.Mode {
	case "local":
		errs = append(errs, oneOf("queue.local_store", cfg.LocalStore, "memory", "redis")...)
		if cfg.LocalStore == "redis" && cfg.RedisURL == "" {
			errs = append(errs, ValidationError{Field: "queue.redis_url", Message: "is required for the redis local store"})
		}
		if cfg.MaxAttempts < 1 {
			errs = append(errs, ValidationError{Field: "queue.max_attempts", Message: "must be at least 1"})
		}
	case "qstash":
		if cfg.QStash.Token == "" {
			errs = append(errs, ValidationError{Field: "queue.qstash.token", Message: "is required"})
		}
	}
	return errs
}

func validateCallback(cfg *CallbackConfig) ValidationErrors {
	var errs ValidationErrors
	u, err := url.Parse(cfg.URL)
	if cfg.URL == "" || err != nil || !u.IsAbs() {
		errs = append(errs, ValidationError{Field: "callback.url", Message: "must be an absolute URL"})
	}
	if cfg.SigningKey == "" {
		errs = append(errs, ValidationError{Field: "callback.signing_key", Message: "is required"})
	}
	return errs
}

func validateLog(cfg *LogConfig) ValidationErrors {
	errs := oneOf("log.level", cfg.Level, "debug", "info", "warn", "error")
	return append(errs, oneOf("log.format", cfg.Format, "json", "text")...)
}
