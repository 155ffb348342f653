// Command clinicauth drives the clinic login and sign-up flows from a
// terminal. It keeps the session between invocations in a local state
// directory, a SQLite file or Redis.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "clinicauth:", err)
		os.Exit(1)
	}
}
