package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/cipclient"
)

type readFlags struct {
	ip        string
	routePath string
	timeoutMs int
	count     int
}

func newReadCmd() *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read <addr>...",
		Short: "Read one or more tag values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.ip, "ip", "", "target adapter IP address (required)")
	cmd.MarkFlagRequired("ip")
	cmd.Flags().StringVar(&flags.routePath, "route-path", "1,0", "CIP route path, e.g. \"1,0\"")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout-ms", 5000, "per-request timeout in milliseconds")
	cmd.Flags().IntVar(&flags.count, "count", 1, "element count to read")

	return cmd
}

func runRead(flags *readFlags, addrs []string) error {
	client, err := cipclient.New(flags.ip,
		cipclient.WithRoutePath(flags.routePath),
		cipclient.WithTimeout(time.Duration(flags.timeoutMs)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	ctx := context.Background()
	for _, addr := range addrs {
		value, err := client.ReadTag(ctx, addr, flags.count)
		if err != nil {
			fmt.Printf("%s: error: %v\n", addr, err)
			continue
		}
		fmt.Printf("%s = %s (%s)\n", addr, cip.FormatScalar(cip.TypeCode(value.TypeCode), value.Data), cip.TypeName(cip.TypeCode(value.TypeCode)))
	}
	return nil
}
