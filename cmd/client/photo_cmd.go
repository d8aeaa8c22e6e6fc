package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/openmined/photobox/internal/photosdk"
	"github.com/spf13/cobra"
)

func newPhotoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "List and upload photos",
	}
	cmd.AddCommand(newPhotoListCmd())
	cmd.AddCommand(newPhotoUploadCmd())
	return cmd
}

func newPhotoListCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:     "list <album>",
		Aliases: []string{"ls"},
		Short:   "List the photos of an album",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sdk, err := newSDK(cmd)
			if err != nil {
				return err
			}

			photos, err := sdk.Photos.List(cmd.Context(), args[0], pattern)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red.Render("ERROR"), err)
				return err
			}

			out := cmd.OutOrStdout()
			if len(photos) == 0 {
				fmt.Fprintln(out, gray.Render("no photos"))
				return nil
			}

			rows := make([][]string, 0, len(photos))
			for _, p := range photos {
				rows = append(rows, []string{p.Name, humanSize(p.Size), p.LastModified})
			}
			fmt.Fprintln(out, renderTable([]string{"PHOTO", "SIZE", "LAST MODIFIED"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Glob on photo names, e.g. '*.jpg'")
	return cmd
}

func newPhotoUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <album> <file>...",
		Short: "Upload photos to an album",
		Long: "Upload photos to an album. A single file goes through the single upload endpoint, " +
			"several files are streamed in one request and the first failure stops the rest.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			albumName, files := args[0], args[1:]
			if name != "" && len(files) > 1 {
				return fmt.Errorf("--name needs exactly one file")
			}

			sdk, err := newSDK(cmd)
			if err != nil {
				return err
			}

			progress := func(fileName string, uploaded, total int64) {
				slog.Debug("upload progress", "file", fileName, "uploaded", humanize.IBytes(uint64(uploaded)), "total", humanize.IBytes(uint64(total)))
			}

			var res *photosdk.UploadResponse
			if len(files) == 1 {
				res, err = sdk.Photos.Upload(cmd.Context(), &photosdk.UploadParams{
					Album:    albumName,
					FilePath: files[0],
					FileName: name,
					Callback: progress,
				})
			} else {
				res, err = sdk.Photos.UploadMany(cmd.Context(), &photosdk.UploadManyParams{
					Album:     albumName,
					FilePaths: files,
					Callback:  progress,
				})
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), red.Render("ERROR"), err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %d file(s), %s to %s\n",
				green.Render(res.Status),
				res.Files,
				humanize.IBytes(uint64(res.Bytes)),
				cyan.Render(albumName),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Photo name for a single upload, defaults to the file name")
	return cmd
}
