package main

import (
	"fmt"
	"os"

	"github.com/odect/odect/pkg/odect/cli"
)

// Main entry point for `odect` app
func main() {
	// Create a new app
	odect, err := cli.NewOdect()
	if err != nil {
		panic("Failed to create an instance of odect App")
	}

	// Main entrypoint of the app
	if err := odect.Main(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
