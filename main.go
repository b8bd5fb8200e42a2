// File: /main.go
package main

import (
	"fmt"
	"os"

	"messenger-api/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "messenger-api:", err)
		os.Exit(1)
	}
}
