package main

import (
	"fmt"
	"os"

	"github.com/corvidlabs/wakewing/cmd"
	"github.com/corvidlabs/wakewing/internal/buildinfo"
)

// version and buildDate are injected via -ldflags "-X main.version=... -X main.buildDate=..."
// at release build time; they default to "unknown" for `go build` without flags.
var (
	version   = ""
	buildDate = ""
)

func main() {
	build := &buildinfo.Context{Version: version, BuildDate: buildDate}

	if err := cmd.RootCommand(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
