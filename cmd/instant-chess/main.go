package main

import (
	"fmt"
	"os"

	"github.com/park285/instant-chess/internal/cli"
	"github.com/park285/instant-chess/internal/obslog"
)

func main() {
	root := cli.Root()
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = obslog.L().Sync()
		os.Exit(1)
	}
	_ = obslog.L().Sync()
}
