package config

import "io"

// Option adjusts how Load resolves configuration sources.
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
	output     io.Writer
}

// WithConfigFile specifies an explicit configuration file path. The
// --config flag takes precedence over it.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "SERIALMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithOutput redirects usage and flag parsing messages.
func WithOutput(w io.Writer) Option {
	return func(o *options) error {
		o.output = w
		return nil
	}
}
