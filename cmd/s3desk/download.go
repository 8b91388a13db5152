package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk/pkg/transfer/store"
)

func newDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote-key> <local-file>",
		Short: "Download an object from the configured bucket",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				localPath, err := filepath.Abs(args[1])
				if err != nil {
					return err
				}

				t := &store.Transfer{
					Direction: store.DirectionDownload,
					Bucket:    a.Client.Bucket(),
					LocalPath: localPath,
					RemoteKey: args[0],
				}
				if err := a.Store.CreateTransfer(t); err != nil {
					return err
				}

				a.Engine.Enqueue(t.ID)
				a.Engine.Wait()

				final, err := a.Store.GetTransfer(t.ID)
				if err != nil {
					return err
				}
				if final.Status != store.StatusCompleted {
					return fmt.Errorf("download ended with status %s: %s", final.Status, final.ErrorMessage)
				}
				return nil
			})
		},
	}
}
