package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/micheleDibi/StyleForge-sub000/internal/client"
	"github.com/micheleDibi/StyleForge-sub000/internal/util"
)

type ConfigOptions struct {
	GlobalOptions

	Timeout time.Duration

	out io.Writer
}

func DefaultConfigOptions() *ConfigOptions {
	return &ConfigOptions{
		GlobalOptions: DefaultGlobalOptions(),
		out:           os.Stdout,
	}
}

func NewCmdConfig() *cobra.Command {
	o := DefaultConfigOptions()
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the client config file used by the other commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ConfigOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of every HTTP request. Zero means none.")
}

func (o *ConfigOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *ConfigOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.ConfigFilePath == "" {
		return fmt.Errorf("--config must not be empty")
	}
	if o.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative")
	}
	return nil
}

func (o *ConfigOptions) Run(ctx context.Context, args []string) error {
	written, err := client.WriteConfig(o.ConfigFilePath, client.Service{
		Server:  o.ServerUrl,
		Timeout: util.Duration{Duration: o.Timeout},
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", o.ConfigFilePath, err)
	}
	if !written {
		_, err = fmt.Fprintf(o.out, "%s is up to date\n", o.ConfigFilePath)
		return err
	}
	_, err = fmt.Fprintf(o.out, "wrote %s\n", o.ConfigFilePath)
	return err
}
