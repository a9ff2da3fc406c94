package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/whatif/pkg/rpc"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Serve the mediation engine over JSON-RPC on stdin/stdout",
	Long: `Serve the mediation engine over line-delimited JSON-RPC for external
tracers. The client creates a session, feeds it raw syscall arguments,
and receives descriptions and forged return values.`,
	Args: cobra.NoArgs,
	RunE: runRPC,
}

func init() {
	rootCmd.AddCommand(rpcCmd)
}

func runRPC(cmd *cobra.Command, args []string) error {
	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()
	return rpc.RunRPC(ctx)
}
