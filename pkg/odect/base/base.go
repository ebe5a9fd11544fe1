// Package base defines the names and variables that have global scope
// throughout which can be used in other subpackages
package base

import (
	"github.com/alecthomas/kingpin/v2"
)

// AppName is kingpin app name.
const AppName = "odect"

// App is kingpin app.
var App = *kingpin.New(
	AppName,
	"Reconstructs the hourly generation mix and average emission factor of a bidding zone including imports.",
)

// EnvTokenName is the environment variable holding the ENTSO-E API token.
const EnvTokenName = "ODECT_ENTSOE_TOKEN"
