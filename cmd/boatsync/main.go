// boatsync 命令行宿主：列表、地图跟随与批量编辑三个组件共享一条总线
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"boatsync/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "boatsync: %v\n", err)
		os.Exit(2)
	}

	app, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boatsync: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.shell().Run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "boatsync: %v\n", err)
		os.Exit(1)
	}
}
