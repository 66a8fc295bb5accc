// Command spm is a single-user secrets vault guarded by a master password
// and a keyfile.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	closeVault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
