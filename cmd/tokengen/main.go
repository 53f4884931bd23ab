// Command tokengen mints and checks bearer tokens for the storage API.
package main

import (
	"fmt"
	"os"

	"github.com/reponote/storage/internal/config"
)

func main() {
	if err := newRootCmd(config.LoadJWTSecret()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
