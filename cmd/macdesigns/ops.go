package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdesigns/internal/analytics"
	"macdesigns/internal/database"
	"macdesigns/internal/store"
)

var (
	lockoutsPurgeIdle time.Duration

	statsSince  time.Duration
	statsExport string
	statsTypes  []string
	statsLimit  int
)

var lockoutsCmd = &cobra.Command{
	Use:   "lockouts",
	Short: "List browser profiles currently locked out of the gate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Connect(ctx, env.DatabaseURL, env.DataPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		states := store.NewSecurityStates(db)
		now := time.Now()

		if lockoutsPurgeIdle > 0 {
			n, err := states.PurgeIdle(ctx, now, now.Add(-lockoutsPurgeIdle))
			if err != nil {
				return fmt.Errorf("purge idle records: %w", err)
			}
			logger.Info("purged idle security records", zap.Int64("count", n))
		}

		locked, err := states.Locked(ctx, now)
		if err != nil {
			return fmt.Errorf("list lockouts: %w", err)
		}
		return printLockouts(cmd.OutOrStdout(), locked, now)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <profile-id>",
	Short: "Clear the attempt counter and lockout of one browser profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Connect(ctx, env.DatabaseURL, env.DataPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		cleared, err := store.NewSecurityStates(db).Clear(ctx, args[0])
		if err != nil {
			return fmt.Errorf("unlock %s: %w", args[0], err)
		}
		if !cleared {
			return fmt.Errorf("no security record for profile %s", args[0])
		}
		logger.Info("profile unlocked", zap.String("profile_id", args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report gate and engagement activity",
	Long: `Prints an engagement summary as JSON. With --export, writes the raw events
instead, as json or csv.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Connect(ctx, env.DatabaseURL, env.DataPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		since := time.Now().Add(-statsSince)
		out := cmd.OutOrStdout()

		switch strings.ToLower(statsExport) {
		case "":
			summary, err := analytics.GetSummary(ctx, db, since)
			if err != nil {
				return fmt.Errorf("summary: %w", err)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)

		case "json", "csv":
			events, err := analytics.GetEventsForExport(ctx, db, analytics.QueryFilter{
				Since:      since,
				EventTypes: statsTypes,
			}, statsLimit)
			if err != nil {
				return fmt.Errorf("export events: %w", err)
			}
			var data []byte
			if strings.EqualFold(statsExport, "csv") {
				data, err = analytics.MarshalEventsCSV(events)
			} else {
				data, err = analytics.MarshalEventsJSON(events)
			}
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err

		default:
			return fmt.Errorf("unknown export format %q (want json or csv)", statsExport)
		}
	},
}

func init() {
	lockoutsCmd.Flags().DurationVar(&lockoutsPurgeIdle, "purge-idle", 0, "First delete unlocked records idle for longer than this (e.g. 720h)")

	statsCmd.Flags().DurationVar(&statsSince, "since", 7*24*time.Hour, "How far back to report")
	statsCmd.Flags().StringVar(&statsExport, "export", "", "Write raw events as json or csv")
	statsCmd.Flags().StringSliceVar(&statsTypes, "type", nil, "Only export these event types")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10000, "Maximum events to export")
}

func printLockouts(w io.Writer, locked []store.Lockout, now time.Time) error {
	if len(locked) == 0 {
		_, err := fmt.Fprintln(w, "No active lockouts.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tATTEMPTS\tREMAINING\tIP\tLAST ATTEMPT")
	for _, l := range locked {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			l.ProfileID,
			l.State.Attempts,
			formatRemaining(l.State.Remaining(now)),
			l.State.IPAddress,
			l.State.LastAttemptAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
