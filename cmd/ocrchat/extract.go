package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chriskillpack/ocrchat"
	"github.com/chriskillpack/ocrchat/chat"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var extractCMD = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract the text of image files",
	Long:  "Send each image to the model and print the extracted markdown, separated by a line of =.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, _, db, err := initApp(ctx, cfg, log.New(io.Discard, "", 0))
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		var bar *progressbar.ProgressBar
		if len(args) > 1 {
			bar = progressbar.NewOptions(
				len(args),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Extracting"),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}

		out := cmd.OutOrStdout()
		var errcnt int
		for i, path := range args {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if i > 0 {
				fmt.Fprintln(out, "==========")
			}

			text, err := extractPath(cmd, app, path)
			if err != nil {
				errcnt++
				fmt.Fprintf(os.Stderr, "%s: %s\n", path, err)
			} else {
				if len(args) > 1 {
					fmt.Fprintf(out, "# %s\n\n", filepath.Base(path))
				}
				fmt.Fprintln(out, text)
			}

			if bar != nil {
				bar.Add(1)
			}
		}

		if errcnt > 0 {
			return fmt.Errorf("%d of %d files failed", errcnt, len(args))
		}
		return nil
	},
}

func extractPath(cmd *cobra.Command, app *ocrchat.App, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return app.ExtractFile(cmd.Context(), "cli", chat.File{
		Name: filepath.Base(path),
		Data: data,
	})
}
