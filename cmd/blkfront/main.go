// A command that prints the KV tuples emitted by the Connection of every
// configured device (both the backend and the frontend nodes), for
// inspection or for feeding into a real xenstore client.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xenproject/goblkif/session"
)

var configPath = flag.String("config", "blkfront.yaml", "path to session configuration")

func main() {
	flag.Parse()

	cfg, err := session.LoadSessionConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	for _, dc := range cfg.Devices {
		conn, err := dc.Connection()
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] device %s: %v\n", dc.Name, err)
			os.Exit(1)
		}
		for _, tuple := range conn.Emit() {
			fmt.Printf("%d\t%s\t%q\n", tuple.Domid, tuple.Path, tuple.Value)
		}
	}
}
