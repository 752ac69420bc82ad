package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/dataset"
	"github.com/nvr-ai/debris/inference"
	"github.com/nvr-ai/debris/logging"
)

// Context carries the configuration through the command tree. Settings is nil until Load
// runs, which happens after flags are parsed.
type Context struct {
	Viper    *viper.Viper
	File     string
	Settings *Settings

	bindings []binding
	closeLog func() error
}

type binding struct {
	flag *pflag.Flag
	key  string
}

// NewContext creates a context around a fresh viper instance.
func NewContext() *Context {
	return &Context{Viper: New()}
}

// BindFlags records that each named flag sets a configuration key. Several commands may
// bind their own flag to the same key; only the flags of the command that runs are applied,
// by Load.
//
// Arguments:
//   - flags: The flag set holding the flags.
//   - keys: Flag name to configuration key.
//
// Returns:
//   - error: If a flag does not exist.
func (c *Context) BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return errors.Errorf("flag --%s not defined", name)
		}
		c.bindings = append(c.bindings, binding{flag: f, key: key})
	}
	return nil
}

// Load binds the recorded flags present in flags, reads the settings and installs the
// logger they describe.
//
// Arguments:
//   - flags: The parsed flags of the running command, inherited ones included.
//
// Returns:
//   - error: A *common.ConfigError for invalid settings.
func (c *Context) Load(flags *pflag.FlagSet) error {
	for _, b := range c.bindings {
		if flags == nil || flags.Lookup(b.flag.Name) != b.flag {
			continue
		}
		if err := c.Viper.BindPFlag(b.key, b.flag); err != nil {
			return errors.Wrapf(err, "binding --%s", b.flag.Name)
		}
	}

	s, err := Load(c.Viper, c.File)
	if err != nil {
		return err
	}
	c.Settings = s

	closeLog, err := logging.Setup(logging.Config{
		Level:      s.Log.Level,
		Format:     s.Log.Format,
		File:       s.Log.File,
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
	})
	if err != nil {
		return &common.ConfigError{Field: "log", Err: err}
	}
	c.closeLog = closeLog
	return nil
}

// Close flushes and closes the log file, if any.
func (c *Context) Close() error {
	if c.closeLog == nil {
		return nil
	}
	err := c.closeLog()
	c.closeLog = nil
	return err
}

// ClassNames returns the class names of the configured descriptor, or the default classes
// when it cannot be loaded.
func (s *Settings) ClassNames() []string {
	d, err := dataset.LoadDescriptor(s.Dataset.Descriptor)
	if err != nil {
		logging.Module("config").Debug("using default class names", "descriptor", s.Dataset.Descriptor, "error", err)
		return append([]string(nil), dataset.DefaultClasses...)
	}
	return d.Names
}

// DetectorConfig converts the inference settings for inference.NewDetector.
func (s InferenceSettings) DetectorConfig(names []string, metrics *inference.Metrics) inference.Config {
	return inference.Config{
		Model:       s.Model,
		LibraryPath: s.LibraryPath,
		Device:      s.Device,
		ImageSize:   s.ImageSize,
		Confidence:  s.Confidence,
		Threads:     s.Threads,
		Names:       names,
		Metrics:     metrics,
	}
}
