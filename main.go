// Command monodb is a write-ahead-logged NSQL store. All of its actual
// command-line behavior lives in cmd/monodb; this file only wires it to
// os.Exit.
package main

import (
	"fmt"
	"os"

	"monodb/cmd/monodb"
)

func main() {
	if err := monodb.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
