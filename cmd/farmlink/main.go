package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/farmlink-backend/internal/cli"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", typed.Code(), err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
