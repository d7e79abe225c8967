package main

import (
	"fmt"
	"os"

	"reportrunner/internal/reportrunner"
)

func main() {
	if err := reportrunner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
