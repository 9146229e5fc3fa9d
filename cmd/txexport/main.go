package main

import (
	"context"
	"txexport/cmd/txexport/commands"
	"txexport/lib/osutil"
	"txexport/lib/telemetry"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()

	tel := telemetry.Optional(telemetry.SetupFromEnv(ctx, "txexport"))
	defer tel.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
