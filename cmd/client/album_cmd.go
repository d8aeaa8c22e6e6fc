package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAlbumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "album",
		Short: "Create and list albums",
	}
	cmd.AddCommand(newAlbumCreateCmd())
	cmd.AddCommand(newAlbumListCmd())
	return cmd
}

func newAlbumCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an album",
		Long:  "Create an album. Characters other than letters and digits are stored as '-'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sdk, err := newSDK(cmd)
			if err != nil {
				return err
			}

			res, err := sdk.Albums.Create(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red.Render("ERROR"), err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s album %s\n", green.Render(res.Status), cyan.Render(res.Album))
			if res.Album != args[0] {
				fmt.Fprintln(out, gray.Render(fmt.Sprintf("requested as %q", args[0])))
			}
			return nil
		},
	}
}

func newAlbumListCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List albums",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sdk, err := newSDK(cmd)
			if err != nil {
				return err
			}

			var rows [][]string
			if raw {
				items, err := sdk.Albums.ListV2(cmd.Context())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), red.Render("ERROR"), err)
					return err
				}
				for _, item := range items {
					rows = append(rows, []string{item.Name, humanTime(item.Properties.LastModified)})
				}
			} else {
				albums, err := sdk.Albums.List(cmd.Context())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), red.Render("ERROR"), err)
					return err
				}
				for _, a := range albums {
					rows = append(rows, []string{a.Name, a.LastModified})
				}
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, gray.Render("no albums"))
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"ALBUM", "LAST MODIFIED"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "v2", false, "Use the streaming listing with full timestamps")
	return cmd
}
