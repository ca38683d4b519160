// Command shellpilot drives shell tasks on remote devices through a
// language-model planner.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("shellpilot"),
		kong.Description("Planner-driven shell execution on remote devices."),
		kong.UsageOnError(),
		kongVars(),
	)

	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("shellpilot %s (commit: %s, built: %s)", version, commit, buildTime)
}
