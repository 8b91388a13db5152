package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk/pkg/transfer/store"
)

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local-file> <remote-key>",
		Short: "Upload a file to the configured bucket",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				localPath, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}

				t := &store.Transfer{
					Direction: store.DirectionUpload,
					Bucket:    a.Client.Bucket(),
					LocalPath: localPath,
					RemoteKey: args[1],
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
					return fmt.Errorf("upload ended with status %s: %s", final.Status, final.ErrorMessage)
				}
				return nil
			})
		},
	}
}
