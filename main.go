package main

import (
	"fmt"
	"os"

	drand "github.com/drand/go-beacon/internal"
)

func main() {
	app := drand.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %+v\n", app.Name, err)
		os.Exit(1)
	}
}
