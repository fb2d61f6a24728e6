package common

import (
	_ "embed"
	"os"
	"strings"
)

//go:embed VERSION
var version string

// Version returns the embedded release version.
func Version() string {
	return strings.TrimSpace(version)
}

// ServerName returns the value sent in the Server header. When running in cloud
// run the revision name is used instead.
func ServerName() string {
	if revision := os.Getenv("K_REVISION"); revision != "" {
		return revision
	}
	return "SolarForecast/" + Version()
}
