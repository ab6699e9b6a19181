package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/ops"
	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/web"
)

// newCLIApp creates the CLI application with all commands. svc may be nil
// when only help or version output is needed.
func newCLIApp(svc *ops.Service) *cli.App {
	app := &cli.App{
		Name:    "placesguard",
		Usage:   "Places API cost control: daily budgets, kill switch, gated visuals",
		Version: Version,
		Commands: []*cli.Command{
			statusCmd(svc),
			recordCmd(svc),
			usageCmd(svc),
			killSwitchCmd(svc),
			resolveCmd(svc),
			predictCmd(svc),
			reasonCmd(svc),
			cellCmd(),
			nearbyCmd(svc),
			serveCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// statusCmd creates the status command.
func statusCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show today's usage and the kill switch state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Only this kind: photos|autocomplete|details|nearby"},
		},
		Action: func(c *cli.Context) error {
			budget, err := svc.BudgetStatus(c.Context, ops.BudgetStatusInput{Kind: c.String("kind")})
			if err != nil {
				return outputError(err)
			}
			flags, err := svc.KillSwitchStatus(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"budget":     budget,
				"killswitch": flags,
			})
		},
	}
}

// recordCmd creates the record command.
func recordCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Record one consumption of a kind (after a paid call made elsewhere)",
		ArgsUsage: "<kind>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one kind is required"))
			}
			output, err := svc.BudgetRecord(c.Context, ops.BudgetRecordInput{Kind: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// usageCmd creates the usage command and its subcommands.
func usageCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Inspect or export the usage ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "events",
				Usage: "List ledger rows for a day, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind"},
					&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day as YYYY-MM-DD (default: today)"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultEventsLimit, Usage: "Maximum rows"},
				},
				Action: func(c *cli.Context) error {
					output, err := svc.UsageEvents(c.Context, ops.UsageEventsInput{
						Kind:  c.String("kind"),
						Day:   c.String("day"),
						Limit: c.Int("limit"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "export",
				Usage: "Export the ledger to a JSONL file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.placesguard/exports/usage-<day>-<timestamp>.jsonl)"},
					&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Only export this day"},
				},
				Action: func(c *cli.Context) error {
					output, err := svc.ExportUsage(c.Context, ops.ExportUsageInput{
						Path: c.String("path"),
						Day:  c.String("day"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// killSwitchCmd creates the killswitch command and its subcommands.
func killSwitchCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "killswitch",
		Usage: "Read or flip the remote kill switch",
		Action: func(c *cli.Context) error {
			output, err := svc.KillSwitchStatus(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
		Subcommands: []*cli.Command{
			{
				Name:      "activate",
				Usage:     "Stop all paid Places calls",
				ArgsUsage: "<reason>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "Why the switch is pulled"},
				},
				Action: func(c *cli.Context) error {
					reason := c.String("reason")
					if reason == "" {
						reason = strings.Join(c.Args().Slice(), " ")
					}
					output, err := svc.KillSwitchActivate(c.Context, ops.KillSwitchActivateInput{Reason: reason})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "deactivate",
				Usage: "Re-enable paid Places calls",
				Action: func(c *cli.Context) error {
					output, err := svc.KillSwitchDeactivate(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func setPlaces(c *cli.Context, svc *ops.Service, enabled bool) error {
	output, err := svc.SetPlaces(c.Context, ops.SetPlacesInput{Enabled: enabled})
	if err != nil {
		return outputError(err)
	}
	return outputJSON(output)
}

// resolveCmd creates the resolve command.
func resolveCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve the visual for a place card",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Value: "other", Usage: "Place category"},
			&cli.StringSliceFlag{Name: "user-photo", Usage: "User photo URL (repeatable)"},
			&cli.StringFlag{Name: "photo", Usage: "Provider photo handle (places/<id>/photos/<ref>)"},
			&cli.StringFlag{Name: "attributions", Usage: "Comma-separated author attributions for --photo"},
			&cli.BoolFlag{Name: "upgrade", Usage: "Attempt the remote tier (bills one photo on success)"},
		},
		Action: func(c *cli.Context) error {
			output := svc.VisualResolve(c.Context, ops.VisualResolveInput{
				Category:     c.String("category"),
				UserPhotos:   c.StringSlice("user-photo"),
				PhotoName:    c.String("photo"),
				Attributions: parseList(c.String("attributions")),
				Upgrade:      c.Bool("upgrade"),
			})
			return outputJSON(output)
		},
	}
}

// predictCmd creates the predict command. Each invocation is one billing
// session.
func predictCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "Autocomplete a query within a fresh session",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return outputError(errors.NewInvalidRequest("query is required"))
			}
			svc.BeginSession()
			defer svc.EndSession()
			return outputJSON(svc.Predict(c.Context, ops.PredictInput{Query: query}))
		},
	}
}

// reasonCmd creates the reason command.
func reasonCmd(_ *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "reason",
		Usage: "Explain why a place would be suggested",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "types", Aliases: []string{"t"}, Required: true, Usage: "Comma-separated place types"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated user interest tags"},
			&cli.StringFlag{Name: "friend-tags", Usage: "Comma-separated friends' interest tags"},
			&cli.BoolFlag{Name: "nearby", Usage: "The place is near the user"},
		},
		Action: func(c *cli.Context) error {
			return outputJSON(ops.Reason(ops.ReasonInput{
				PlaceTypes: parseList(c.String("types")),
				UserTags:   parseList(c.String("tags")),
				FriendTags: parseList(c.String("friend-tags")),
				Nearby:     c.Bool("nearby"),
			}))
		},
	}
}

func boundsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "north", Aliases: []string{"n"}, Required: true},
		&cli.Float64Flag{Name: "south", Aliases: []string{"s"}, Required: true},
		&cli.Float64Flag{Name: "east", Aliases: []string{"e"}, Required: true},
		&cli.Float64Flag{Name: "west", Aliases: []string{"w"}, Required: true},
	}
}

func boundsFrom(c *cli.Context) place.Bounds {
	return place.Bounds{
		North: c.Float64("north"),
		South: c.Float64("south"),
		East:  c.Float64("east"),
		West:  c.Float64("west"),
	}
}

// cellCmd creates the cell command.
func cellCmd() *cli.Command {
	return &cli.Command{
		Name:  "cell",
		Usage: "Print the nearby cache cell of a viewport",
		Flags: boundsFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Cell(boundsFrom(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// nearbyCmd creates the nearby command.
func nearbyCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "Search places in a viewport (cached cells are free)",
		Flags: boundsFlags(),
		Action: func(c *cli.Context) error {
			output, err := svc.NearbySearch(c.Context, boundsFrom(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP and WebSocket API for the UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := svc.Config()
			bind := cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}
			srv := web.NewServer(svc, bind, port)
			return web.Run(srv, svc.Logger())
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var gErr *errors.GuardError
	if stderrors.As(err, &gErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseList parses a comma-separated string into a slice of trimmed,
// non-empty values.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
