/*
Package main is the entry point for the ric CLI.

ric recommends the next analysis tool inside a user session, scoring
candidates from the co-occurrence history stored in a graph database.

Usage:

	ric [command]

Available Commands:

	recommend   Replay a session and print recommendations after each tool
	score       Show confidence scores of tools that follow a tool
	tools       List or search the tool catalog
	seed        Generate a synthetic session history
	serve       Run the MCP server (stdio transport)
	config      Manage the configuration file
	version     Show version information

Examples:

	# Build a local history and replay the default session
	ric seed --load --store sqlite
	ric recommend --store sqlite

	# Serve recommendations to an AI client from Neo4j
	ric serve
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/ric/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
