// Command pmabench exercises a packed map from the command line.
//
//	pmabench bench --keys 100000 --workers 8 --order random
//	pmabench dump --keys 16 --order descending --occupied-only
//	pmabench layout --keys 1000
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
