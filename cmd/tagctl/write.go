package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plcgo/goenip/cip"
	"github.com/plcgo/goenip/cipclient"
	"github.com/plcgo/goenip/tagio"
)

type writeFlags struct {
	ip        string
	routePath string
	timeoutMs int
	typeName  string
}

func newWriteCmd() *cobra.Command {
	flags := &writeFlags{}

	cmd := &cobra.Command{
		Use:   "write <addr> <value>",
		Short: "Write a tag value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(flags, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&flags.ip, "ip", "", "target adapter IP address (required)")
	cmd.MarkFlagRequired("ip")
	cmd.Flags().StringVar(&flags.routePath, "route-path", "1,0", "CIP route path, e.g. \"1,0\"")
	cmd.Flags().IntVar(&flags.timeoutMs, "timeout-ms", 5000, "per-request timeout in milliseconds")
	cmd.Flags().StringVar(&flags.typeName, "type", "DINT", "CIP elementary type: BOOL|SINT|INT|DINT|LINT|USINT|UINT|UDINT|ULINT|REAL|LREAL")

	return cmd
}

func runWrite(flags *writeFlags, addr, rawValue string) error {
	typeCode, err := cip.ParseTypeName(flags.typeName)
	if err != nil {
		return err
	}
	data, err := cip.EncodeScalar(typeCode, rawValue)
	if err != nil {
		return fmt.Errorf("encode %s as %s: %w", rawValue, flags.typeName, err)
	}

	client, err := cipclient.New(flags.ip,
		cipclient.WithRoutePath(flags.routePath),
		cipclient.WithTimeout(time.Duration(flags.timeoutMs)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if err := client.WriteTag(context.Background(), addr, tagio.Value{TypeCode: uint16(typeCode), Data: data}); err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	fmt.Printf("%s = %s written\n", addr, rawValue)
	return nil
}
