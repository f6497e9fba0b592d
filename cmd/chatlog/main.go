package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatlog/cmd/chatlog/flushcmder"
	"github.com/papercomputeco/chatlog/cmd/chatlog/pushcmder"
	"github.com/papercomputeco/chatlog/cmd/chatlog/servecmder"
)

func main() {
	root := &cobra.Command{
		Use:          "chatlog",
		Short:        "Chat relay that buffers conversation turns and logs them to durable storage",
		SilenceUsage: true,
	}

	root.AddCommand(
		servecmder.NewServeCmd(),
		flushcmder.NewFlushCmd(),
		pushcmder.NewPushCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
