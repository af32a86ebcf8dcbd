package main

import (
	"os"

	cmakeext "github.com/contriboss/cmake-extension-go"
	"github.com/contriboss/cmake-extension-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cmakeext.ExitStatus(err))
	}
}
