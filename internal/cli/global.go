package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/micheleDibi/StyleForge-sub000/internal/client"
	"github.com/micheleDibi/StyleForge-sub000/internal/config"
	"github.com/micheleDibi/StyleForge-sub000/pkg/log"
)

type GlobalOptions struct {
	ServerUrl      string
	ConfigFilePath string
	LogLevel       string

	cfg            *config.Config
	serverUrlFlag  bool
	configFileFlag bool
}

func DefaultGlobalOptions() GlobalOptions {
	o := GlobalOptions{
		ServerUrl:      "http://localhost:8000",
		ConfigFilePath: client.DefaultClientConfigPath(),
		LogLevel:       "info",
	}
	// an invalid environment is reported by Validate
	if cfg, err := config.New(); err == nil {
		o.cfg = cfg
		o.ServerUrl = cfg.Service.ServerUrl
		o.LogLevel = cfg.Service.LogLevel
		if cfg.Service.ClientConfigFile != "" {
			o.ConfigFilePath = cfg.Service.ClientConfigFile
		}
	}
	return o
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the StyleForge API server")
	fs.StringVarP(&o.ConfigFilePath, "config", "c", o.ConfigFilePath, "Path to the client config file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.serverUrlFlag = cmd.Flags().Changed("server-url")
	o.configFileFlag = cmd.Flags().Changed("config")

	lvl, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log.InitLog(lvl))
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.cfg == nil {
		if _, err := config.New(); err != nil {
			return fmt.Errorf("reading environment: %w", err)
		}
	}
	if o.ServerUrl == "" && o.ConfigFilePath == "" {
		return fmt.Errorf("either --server-url or --config must be set")
	}
	return nil
}

// Client returns a jobs client. An explicit --server-url wins; otherwise the
// client config file is used when it exists.
func (o *GlobalOptions) Client() (*client.JobsClient, error) {
	if !o.serverUrlFlag && o.ConfigFilePath != "" {
		_, err := os.Stat(o.ConfigFilePath)
		switch {
		case err == nil:
			return client.NewFromConfigFile(o.ConfigFilePath)
		case o.configFileFlag:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := client.NewDefault()
	cfg.Service.Server = o.ServerUrl
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return client.NewFromConfig(cfg)
}
