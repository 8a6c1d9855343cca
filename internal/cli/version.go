package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/micheleDibi/StyleForge-sub000/pkg/version"
)

type VersionOptions struct {
	Output string

	out io.Writer
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
		out:    os.Stdout,
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print StyleForge CLI version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(o.Output); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	if o.Output != "" {
		return writeDocument(o.out, o.Output, versionInfo)
	}
	_, err := fmt.Fprintf(o.out, "StyleForge Version: %s\n", versionInfo.String())
	return err
}
