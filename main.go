package main

import (
	"log"

	"golang-autotrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("could not start application: %v", err)
	}
}
