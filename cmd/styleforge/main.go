package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/micheleDibi/StyleForge-sub000/internal/cli"
)

func main() {
	command := NewStyleForgeCommand()
	err := command.Execute()
	_ = zap.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}

func NewStyleForgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "styleforge [flags] [options]",
		Short: "styleforge watches StyleForge jobs.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdWatch())
	cmd.AddCommand(cli.NewCmdGet())
	cmd.AddCommand(cli.NewCmdConfig())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
