// Command idforge is the command line front end for the idforge library.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "idforge:", err)
		os.Exit(1)
	}
}
