// cmd/server is the main entrypoint for an aggregation node.
//
// Configuration is entirely via flags so a single binary can run any
// number of independent nodes on one machine for testing.
//
// Example:
//
//	./server -port 4567 -file cache.json
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"weather-aggregator/internal/orchestrator"
)

func main() {
	def := orchestrator.DefaultConfig()

	port := flag.String("port", def.Port, "TCP port to listen on")
	file := flag.String("file", def.Path, "cache document path")
	maxIdleSeconds := flag.Int("max-idle-seconds", def.MaxIdleSeconds,
		"seconds of producer silence before its record expires")
	selectTimeoutMs := flag.Int("select-timeout-ms", def.SelectTimeoutMs,
		"maximum time the front end blocks before re-checking shutdown")
	idleBackoffMs := flag.Int("idle-backoff-ms", def.IdleBackoffMs,
		"sleep between empty queue polls")
	flag.Parse()

	// A bare positional argument is also accepted as the port.
	if arg := flag.Arg(0); arg != "" {
		*port = arg
	}

	cfg := orchestrator.Config{
		Port:            *port,
		Path:            *file,
		MaxIdleSeconds:  *maxIdleSeconds,
		SelectTimeoutMs: *selectTimeoutMs,
		IdleBackoffMs:   *idleBackoffMs,
	}

	o := orchestrator.New(cfg)
	if err := o.Start(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	o.Stop()
}
