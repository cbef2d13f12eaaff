package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/chriskillpack/ocrchat"
	"github.com/spf13/cobra"
)

var historyCMD = &cobra.Command{
	Use:   "history",
	Short: "Show recent extractions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.HistoryDB == "" {
			return errors.New("no history database, set --history or historyDB in the config")
		}

		ctx := cmd.Context()
		db, err := ocrchat.NewDB(ctx, cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()

		n, _ := cmd.Flags().GetInt("limit")
		exs, err := db.RecentExtractions(ctx, n)
		if err != nil {
			return err
		}
		total, failed, err := db.CountExtractions(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSESSION\tFILE\tSIZE\tBACKEND\tMODEL\tTOOK\tRESULT")
		for _, ex := range exs {
			result := fmt.Sprintf("%d chars", ex.ResultLen)
			if ex.Err.Valid {
				result = "error: " + ex.Err.String
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d %dB\t%s\t%s\t%s\t%s\n",
				ex.StartedAt.Local().Format(time.DateTime),
				ex.SessionId,
				ex.FileName,
				ex.Width, ex.Height, ex.FileSize,
				ex.Backend,
				ex.Model,
				ex.Duration().Round(time.Millisecond),
				result,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%d extractions, %d failed\n", total, failed)
		return nil
	},
}

func init() {
	historyCMD.Flags().IntP("limit", "n", 20, "Number of extractions to show")
}
