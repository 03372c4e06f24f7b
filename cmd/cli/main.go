package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/billstock/cmd/cli/internal/commands"
	"github.com/wolfeidau/billstock/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Login         commands.LoginCmd         `cmd:"" help:"Log in and store the session"`
		Logout        commands.LogoutCmd        `cmd:"" help:"Clear the stored session"`
		Register      commands.RegisterCmd      `cmd:"" help:"Create an account"`
		Profile       commands.ProfileCmd       `cmd:"" help:"Show the signed in user's profile"`
		UpdateProfile commands.UpdateProfileCmd `cmd:"" name:"update-profile" help:"Update a user's profile"`
		Passwd        commands.PasswdCmd        `cmd:"" help:"Change your password"`
		Status        commands.StatusCmd        `cmd:"" help:"Restore the session and show its state"`
		Token         commands.TokenCmd         `cmd:"" help:"Decode the stored session token"`
		Watch         commands.WatchCmd         `cmd:"" help:"Watch the session until interrupted"`
		Request       commands.RequestCmd       `cmd:"" help:"Send an authenticated API request"`
		Guard         commands.GuardCmd         `cmd:"" help:"Check whether the session may visit a path"`

		Debug     bool   `help:"Enable debug mode." env:"BILLSTOCK_DEBUG"`
		Config    string `help:"Config file (default ~/.billstock/config.yaml)." type:"path" env:"BILLSTOCK_CONFIG"`
		Server    string `help:"API server URL." env:"BILLSTOCK_SERVER_URL"`
		Store     string `help:"Session store backend (file, memory, redis)." env:"BILLSTOCK_STORE"`
		StoreDir  string `help:"Directory for the file session store." type:"path" env:"BILLSTOCK_STORE_DIR"`
		RedisAddr string `help:"Redis address for the redis session store." env:"BILLSTOCK_REDIS_ADDR"`
		Otel      bool   `help:"Export OpenTelemetry traces and metrics over OTLP." env:"BILLSTOCK_OTEL"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("billstock"),
		kong.Description("Session client for the billing and stock management API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigPath: cli.Config,
		Server:     cli.Server,
		Store:      cli.Store,
		StoreDir:   cli.StoreDir,
		RedisAddr:  cli.RedisAddr,
		Otel:       cli.Otel,
	})
	cmd.FatalIfErrorf(err)
}
