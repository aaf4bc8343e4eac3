// cmd/reader is a Cobra-based CLI client that fetches weather records
// from an aggregation node over its raw wire protocol.
//
// Usage:
//
//	reader fetch <id>  --server localhost:4567
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"weather-aggregator/internal/wireclient"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "reader",
		Short: "fetches weather records from an aggregation node",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"localhost:4567", "aggregation node address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"request timeout")

	root.AddCommand(fetchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <id>",
		Short: "fetch the latest record for a station id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireclient.New(serverAddr, timeout)
			resp, err := c.Fetch(context.Background(), args[0])
			if err == wireclient.ErrNotFound {
				fmt.Printf("id %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
