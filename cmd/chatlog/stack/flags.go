package stack

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatlog/pkg/config"
)

// Flags are the configuration flags shared by every chatlog command.
type Flags struct {
	ConfigPath string
	EnvPath    string
	Debug      bool
}

// Register adds the shared flags to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to a TOML configuration file")
	cmd.Flags().StringVar(&f.EnvPath, "env-file", ".env", "Path to a .env file (ignored if missing)")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging")
}

// Load reads the configuration and applies the flag overrides.
func (f *Flags) Load() (*config.Config, error) {
	cfg, err := config.Load(f.ConfigPath, f.EnvPath)
	if err != nil {
		return nil, err
	}
	if f.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}
