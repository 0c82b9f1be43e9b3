package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/byteness/embedrelay/cli"
)

// Version is provided at compile time
var Version = "dev"

func main() {
	app := kingpin.New("embedrelay", "Relay Cognito sign-ins to embedded QuickSight dashboards")
	app.Version(Version)

	g := cli.ConfigureGlobals(app)
	cli.ConfigureServeCommand(app, g)
	cli.ConfigureLoginCommand(app, g)
	cli.ConfigureEmbedCommand(app, g)
	cli.ConfigureCheckCommand(app, g)
	cli.ConfigureInitCommand(app, g)

	// Config commands
	cli.ConfigureConfigCommand(app, g)

	// IAM and monitoring setup
	cli.ConfigurePermissionsCommand(app, g)
	cli.ConfigureMonitorCommand(app, g)
	cli.ConfigureRateLimitCommand(app, g)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
