// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// relayCommand runs one reconciliation pass.
func relayCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "Run one rating sync pass",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "two-way",
				Usage: "Also import feedback from the taste services back into Plex",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every track decision",
			},
		},
		Action: r.Relay,
	}
}

// resetCommand clears all relayed feedback everywhere.
func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Withdraw ALL feedback previously pushed to the taste services",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Also clear the loved/hated ratings on the Plex server itself",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the interactive confirmation",
			},
		},
		Action: r.Reset,
	}
}

// setupCommand initializes config and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file and initialize the ledger database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// statusCommand summarizes the ledger.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show ledger partition counts",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Status,
	}
}
