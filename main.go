package main

import (
	"fmt"
	"os"

	"github.com/ehdgml1/vehicle-sim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
