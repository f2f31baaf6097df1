// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmd provides the CLI command tree for the NebulaFS server.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nebulafs",
	Short: "NebulaFS - a single-node object storage service",
	Long: `NebulaFS is a single-node object storage service with an HTTP API for
buckets and opaque binary objects. It supports streamed and resumable
multipart uploads, ranged downloads, and bearer-token authentication.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
