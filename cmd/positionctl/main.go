// positionctl: операторские команды над хранилищем позиций и журналом сделок.
//
//	positionctl [--config path] <command> [args]
//
// Команды: positions, reset-emergency-stop, migrate, clear --yes, report,
// export <file.xlsx>.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

const usage = `usage: positionctl [--config path] [--days n] [--yes] <command> [args]

commands:
  positions              open positions from the store
  reset-emergency-stop   clear the sticky emergency stop
  migrate                upgrade stored records to the current schema
  clear                  remove every stored position (needs --yes)
  report                 trade journal summary, daily and per symbol
  export <file.xlsx>     trade journal to excel
`

func main() {
	flags := pflag.NewFlagSet("positionctl", pflag.ContinueOnError)
	flags.String("config", "configs/values_local.yaml", "config file (yaml or toml)")
	flags.Int("days", 7, "days in the daily report")
	flags.Bool("yes", false, "confirm destructive commands")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	viper.SetEnvPrefix("POSITIONCTL")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		fail(err)
	}

	args := flags.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger.UseNop()
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		fail(errors.Wrap(err, "load config"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	app := &ctl{cfg: cfg, out: os.Stdout}

	switch args[0] {
	case "positions":
		return app.withStore(ctx, app.positions)
	case "reset-emergency-stop":
		return app.withStore(ctx, app.resetEmergencyStop)
	case "migrate":
		return app.withStore(ctx, app.migrate)
	case "clear":
		if !viper.GetBool("yes") {
			return errors.New("clear removes every stored position, rerun with --yes")
		}
		return app.withStore(ctx, app.clear)
	case "report":
		return app.report(viper.GetInt("days"))
	case "export":
		if len(args) < 2 {
			return errors.New("export needs an output file")
		}
		return app.export(args[1])
	default:
		return errors.Errorf("unknown command %q", args[0])
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "positionctl: %v\n", err)
	os.Exit(1)
}
