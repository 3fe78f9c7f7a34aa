package artifact

import (
	"os"
	"os/user"
	"strings"
	"time"
)

// Provenance is recorded with every sealed artifact.
type Provenance struct {
	Version        string `yaml:"version"`
	ProductionHost string `yaml:"production_host"`
	History        string `yaml:"history"`
}

// NewProvenance describes the running process.
func NewProvenance(version string) Provenance {
	host, _ := os.Hostname()
	return Provenance{
		Version:        "GRB-R v" + version,
		ProductionHost: host,
		History:        history(time.Now().UTC()),
	}
}

// history renders "date, time, user, command line".
func history(now time.Time) string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return strings.Join([]string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		name,
		strings.Join(os.Args, " "),
	}, ", ")
}
