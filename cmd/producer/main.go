// cmd/producer is a Cobra-based CLI client that pushes weather records to
// an aggregation node over its raw wire protocol.
//
// Usage:
//
//	producer push <producerId> '<json>'  --server localhost:4567
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
		Use:   "producer",
		Short: "pushes weather records to an aggregation node",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"localhost:4567", "aggregation node address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"request timeout")

	root.AddCommand(pushCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <producerId> <json>",
		Short: "push a weather record (the JSON body must contain an \"id\" field)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("second argument is not valid JSON")
			}
			c := wireclient.New(serverAddr, timeout)
			resp, err := c.Push(context.Background(), args[0], json.RawMessage(args[1]))
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
