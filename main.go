// main is the entry point for the ers CLI.
package main

import (
	"github.com/huangsam/ers/cmd"
	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/iocache"
)

func main() {
	cmd.SetStoreManager(iocache.Manager)
	err := cmd.Execute()

	if perr := cmd.StopProfiling(); perr != nil {
		contract.LogWarn("Failed to stop profiling", perr)
	}
	iocache.CloseStores()

	if err != nil {
		contract.LogFatal("Command failed", err)
	}
}
