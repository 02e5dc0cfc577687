// Command varpath resolves symbolic variable paths against a binary's
// layout and reads or writes them in a memory image.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/varpath/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
