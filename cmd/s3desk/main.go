package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk/pkg/version"
)

var configFilePath string
var debug bool

var rootCmd = &cobra.Command{
	Use:   "s3desk",
	Short: "Resumable S3 transfers from the command line",
	Long: "s3desk moves files to and from an S3 bucket with resumable multipart\n" +
		"uploads, ranged downloads, a persistent transfer queue and crash recovery.",
	Version: fmt.Sprintf("gitVersion=%s, gitCommit=%s", version.GitVersion, version.GitCommit),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")

	rootCmd.AddCommand(newUploadCommand())
	rootCmd.AddCommand(newDownloadCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newBucketsCommand())
	rootCmd.AddCommand(newTransfersCommand())
}
