package main

import (
	"fmt"

	"github.com/openmined/photobox/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print PhotoBox version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := version.DetailedWithApp()
			if short {
				out = version.ShortWithApp()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version and revision")
	return cmd
}
