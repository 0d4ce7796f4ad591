package save

import "log/slog"

// Config holds configuration for a Saver.
type Config struct {
	// KeyField is the reserved name of every type's key field.
	// Default: "_id"
	KeyField string

	// Logger receives lifecycle and failure logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		KeyField: "_id",
		Logger:   slog.Default(),
	}
}

// validate fills in defaults for unset values.
func (c *Config) validate() {
	if c.KeyField == "" {
		c.KeyField = "_id"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Option configures a Saver.
type Option func(*Saver)

// WithConfig replaces the Saver's configuration.
func WithConfig(cfg Config) Option {
	return func(s *Saver) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Saver) {
		s.cfg.Logger = logger
	}
}

// WithHooks sets all hooks at once.
func WithHooks(h Hooks) Option {
	return func(s *Saver) {
		s.hooks = h
	}
}

// WithFilter sets the per-entity filter.
func WithFilter(f EntityFilter) Option {
	return func(s *Saver) {
		s.hooks.Filter = f
	}
}

// WithBeforeSave sets the pre-batch hook.
func WithBeforeSave(h BeforeSaveHook) Option {
	return func(s *Saver) {
		s.hooks.BeforeSave = h
	}
}

// WithAfterSave sets the post-batch hook.
func WithAfterSave(h AfterSaveHook) Option {
	return func(s *Saver) {
		s.hooks.AfterSave = h
	}
}
