package core

import (
	"fmt"

	"go.uber.org/zap"
)

// Version is the simulator release string, resolved once at startup.
var Version string

const NoVersion = "no_version_info"

// SetVersion resolves the version. The build flag wins over the
// configured one.
func SetVersion(c *Conf, versionByBuildFlag string) {
	if versionByBuildFlag != "" {
		Version = versionByBuildFlag
	} else if c.Version != "" {
		Version = c.Version
	} else {
		Version = NoVersion
	}
	zap.L().Info(fmt.Sprintf("Simulator version is %s", Version))
}
