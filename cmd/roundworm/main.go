package main

import (
	"os"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
)

func main() {
	if err := newRootCommand(&options{}).Execute(); err != nil {
		legacy.L.WithError(err).Error("RoundWorm exited with an error")
		os.Exit(1)
	}
}
