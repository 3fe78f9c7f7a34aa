package cmd

import (
	"firestige.xyz/grbr/internal/daemon"
)

// engine is the part of the daemon the run commands drive.
type engine interface {
	Start() error
	Run(job func() error) error
	Dispatch(paths []string) error
	Reconstruct(path string) error
}

// newEngine is replaced in tests.
var newEngine = func(configPath string, opts daemon.Options) (engine, error) {
	return daemon.New(configPath, opts)
}
