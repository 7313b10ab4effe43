package main

import (
	"os"

	"github.com/vacradar/vacradar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
