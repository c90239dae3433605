package main

import (
	"os"

	"github.com/rustyeddy/candles/cmd/candles/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
