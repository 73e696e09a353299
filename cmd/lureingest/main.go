// lureingest pulls queued product pages from tackle maker sites, expands each
// product into one catalog row per color and weight, and relocates the
// product images into the object store.
//
// Usage:
//
//	lureingest migrate
//	lureingest enqueue --source=<id> --url=<product-url> [--name=<label>]
//	lureingest run [--max=<n>] [--dry-run]
//	lureingest daemon [--schedule=<cron>] [--http]
//	lureingest serve
//	lureingest status
//	lureingest reset [--errors] [--stale=<duration>] [--source=<id>]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
