package main

import (
	"flag"

	"github.com/matheus3301/imsg/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (overrides ~/.imsg/config.toml)")
	dbFlag := flag.String("db", "", "message store path (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath: *configFlag,
			StorePath:  *dbFlag,
		}),
	)

	app.Run()
}
