package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/di"
)

func newUploadCmd(a *app) *cobra.Command {
	var where, date string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Mirror one day's partition directory to Google Drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, _, err := dayRange(date, "", "", a.today())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Market(where)
			if err != nil {
				return err
			}
			dir := m.Store.PartitionDir(day)
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("partition %s of %s: %w", day, where, err)
			}

			up, err := di.NewUploader(ctx, a.cfg.Drive)
			if err != nil {
				return err
			}
			res, err := up.UploadDir(ctx, dir, m.Config.DriveParent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d files) to %s, folder id %s\n", dir, res.Files, m.Config.DriveParent, res.FolderID)
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "hk", "Market whose partition is uploaded")
	cmd.Flags().StringVar(&date, "date", "", "Partition day (YYYY-MM-DD, default today)")
	return cmd
}
