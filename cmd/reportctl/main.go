// Command reportctl talks to a running market report controller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "script",
			Usage:    "path of the analysis script on the cluster",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "initial",
			Usage:    "first day of the report window (YYYY-MM-DD)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "final",
			Usage:    "last day of the report window (YYYY-MM-DD)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "email",
			Usage:    "report recipient",
			Required: true,
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "reportctl",
		Usage: "submit and inspect market report jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "controller base URL",
				Value:   "http://localhost:6000",
				Sources: cli.EnvVars("CONTROLLER_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "jobs",
				Usage:  "list jobs waiting to run",
				Action: jobsAction,
			},
			{
				Name:   "schedule",
				Usage:  "run a report after the controller's delay",
				Flags:  requestFlags(),
				Action: scheduleAction,
			},
			{
				Name:   "submit",
				Usage:  "run a report now and wait for it",
				Flags:  requestFlags(),
				Action: submitAction,
			},
		},
	}
}
