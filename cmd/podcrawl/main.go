// Command podcrawl runs the crawler process: one pod store per
// configured pod, the fetch/parse pipeline, the global coordinator, and
// (if enabled) a Prometheus metrics server (spec.md §6).
package main

import "os"

func main() {
	os.Exit(Execute())
}
