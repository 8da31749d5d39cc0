// Command fintrack is the command-line front end of the finance tracker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"fintrack/internal/app"
	"fintrack/internal/cli"
	"fintrack/internal/log"
)

const usage = `usage: fintrack <command> [arguments]

commands:
  fy create -name NAME -start YYYY-MM-DD [-end YYYY-MM-DD]
  fy list
  fy activate ID
  fy update ID [-name NAME] [-start DATE] [-end DATE] [-active]
  fy delete ID
  expense add -desc TEXT -amount N -category C [-date DATE] [-notes TEXT]
  expense update ID [-desc TEXT] [-amount N] [-category C] [-date DATE] [-notes TEXT]
  expense delete ID
  expense list [-fy ID] [-category C] [-search TEXT]
  expense attach ID FILE
  budget set CATEGORY AMOUNT
  budget remove CATEGORY
  budget show [-fy ID]
  summary [-page N]
  categories
  export [-fy ID]
  watch [-export]
`

var errUsage = errors.New("invalid usage")

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cli.SetupLogger(cfg.LogLevel, stderr)

	if args[0] == "watch" {
		ctx, _ = cli.GracefulShutdown(logger, 10*time.Second, nil)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start tracker", log.FieldError, err)
		return 1
	}
	defer a.Close()

	c := &commands{app: a, out: stdout, logger: logger}
	if err := c.dispatch(ctx, args); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
