// Command h5export converts Dedalus snapshot archives into VTK or XDMF files.
package main

import (
	"os"

	"github.com/robert-malhotra/h5export/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
