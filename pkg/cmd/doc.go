// Package cmd provides the CLI commands for the revisor binary.
package cmd
