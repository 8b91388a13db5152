package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List objects under a prefix, served through the listing cache",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				prefix := ""
				if len(args) > 0 {
					prefix = args[0]
				}

				if a.Cache.IsStale(prefix) {
					counter := a.Cache.MutationCounter(prefix)
					entries, _, err := a.Client.List(context.Background(), prefix, "/")
					if err != nil {
						return err
					}
					a.Cache.SafeRevalidate(prefix, entries, counter)
				}

				listing, ok := a.Cache.Get(prefix)
				if !ok {
					return fmt.Errorf("no listing for prefix %q", prefix)
				}
				for _, e := range listing.Entries {
					if e.IsPrefix {
						fmt.Printf("%12s  %s/\n", "DIR", e.Name)
						continue
					}
					fmt.Printf("%12s  %s\n", humanBytes(e.Size), e.Name)
				}
				return nil
			})
		},
	}
}

func newBucketsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List buckets visible to the configured credentials",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runApp(cmd, func(a *app) error {
				names, err := a.Client.ListBuckets(context.Background())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Println(name)
				}
				return nil
			})
		},
	}
}
