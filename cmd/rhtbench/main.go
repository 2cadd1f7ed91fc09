// Command rhtbench is a demo and benchmark harness for the rht package.
//
// Usage:
//
//	rhtbench demo                 # quick-start correctness demo
//	rhtbench bench [flags]        # resize/churn timing report
//	rhtbench version
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "demo":
		if err := demoCommand(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "bench":
		if err := benchCommand(args); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("rhtbench version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `rhtbench - demo and benchmark harness for the rht hash table

Usage:
  rhtbench demo
  rhtbench bench [flags]
  rhtbench version

Run "rhtbench bench --help" for bench flags.`)
}
