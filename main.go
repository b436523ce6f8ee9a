package main

import (
	"os"

	"github.com/amsen20/lotos/logging"
)

var log = logging.Get()

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("lotos failed")
		os.Exit(1)
	}
}
