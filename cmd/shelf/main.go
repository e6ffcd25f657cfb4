// Command shelf manages a shelf content store and serves its API.
package main

import (
	"os"

	"github.com/mesh-intelligence/shelf/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
