// Command testangel-host loads TestAngel engines and runs their
// instructions from the command line.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/testangel/testangel-sdk/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
