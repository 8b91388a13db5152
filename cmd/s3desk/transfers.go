package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk/pkg/transfer/store"
)

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Recover and run all pending transfers",
		Long: "Re-dispatches every queued, interrupted or paused transfer for the\n" +
			"configured bucket. Multipart uploads continue from their last durable\n" +
			"part; chunked downloads continue from their temp file.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				a.Engine.RestorePending()
				a.Engine.Wait()
				return nil
			})
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Abort orphaned multipart uploads on the backend",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				aborted := a.Engine.CleanupOrphanedUploads(context.Background())
				fmt.Printf("aborted %d orphaned multipart upload(s)\n", aborted)
				return nil
			})
		},
	}
}

func newTransfersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfers",
		Short: "Show the transfer queue and history",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				all, err := a.Store.ListByStatuses(
					store.StatusQueued, store.StatusInProgress, store.StatusPaused,
					store.StatusCompleted, store.StatusFailed, store.StatusCancelled,
				)
				if err != nil {
					return err
				}
				for _, t := range all {
					line := fmt.Sprintf("#%d %s %s %s -> %s (%d/%d bytes)",
						t.ID, t.Status, t.Direction, t.LocalPath, t.RemoteKey,
						t.TransferredBytes, t.TotalBytes)
					if t.ErrorMessage != "" {
						line += " error: " + t.ErrorMessage
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	}
}
