// xdpstats attaches an XDP statistics program to a network device,
// shares its stats map through bpffs and reports per-action rates.
package main

import (
	"os"

	"github.com/frobware/go-xdpstats/cmd/xdpstats/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
