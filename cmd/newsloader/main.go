package main

import (
	"os"

	"github.com/newsbench/newsloader/cmd/newsloader/cmd"
	"github.com/newsbench/newsloader/internal/common"
)

func main() {
	common.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
