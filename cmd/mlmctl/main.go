// Command mlmctl is the operator CLI: balances, stats, commission runs, reversals and rank jobs.
package main

import (
	"os"

	log "github.com/charmbracelet/log"
)

func main() {
	if err := newCLI(defaultBootstrap).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
