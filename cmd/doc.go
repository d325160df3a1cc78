// Package cmd implements the command-line interface of hioload-bench, a
// fixed-response TCP server used to compare I/O models on one core.
//
// The package is organized into subpackages:
//
//   - serve: the uring, epoll and goroutine server commands
//   - util: configuration loading, logging setup and help text helpers
//
// See hioload-bench --help for a list of all commands.
package cmd
