package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdesigns/internal/config"
	"macdesigns/internal/gate"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Try the access gate from the terminal",
	Long: `Runs the gate against the site file's passwords. Attempts and lockouts are
kept in DATA_PATH/security_state.json, so they carry over between runs the same
way a browser keeps them between visits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		site, err := config.NewManager(env.SiteFile)
		if err != nil {
			return err
		}

		ok, err := runCheck(ctx, checkOptions{
			In:        cmd.InOrStdin(),
			Out:       cmd.OutOrStdout(),
			Allowlist: gate.NewAllowlist(site.Get().Passwords...),
			States:    gate.NewFileStore(env.DataPath),
			IPs:       gate.NewHTTPLookup(env.IPLookupURL),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("access not granted")
		}
		return nil
	},
}

// checkOptions wires a terminal gate session. Nil collaborators get the gate's
// production defaults.
type checkOptions struct {
	In        io.Reader
	Out       io.Writer
	Allowlist *gate.Allowlist
	States    gate.SecurityStateStore

	Delay    gate.Delayer
	IPs      gate.IPLookup
	Clock    func() time.Time
	Interval time.Duration
	Logger   *zap.Logger
}

// runCheck loops between the password prompt and the lockout countdown until the
// gate opens or input ends. It reports whether access was granted.
func runCheck(ctx context.Context, opts checkOptions) (bool, error) {
	g := gate.New(gate.Options{
		Allowlist: opts.Allowlist,
		States:    opts.States,
		Flag:      &gate.MemoryFlag{},
		Delay:     opts.Delay,
		IPs:       opts.IPs,
		Clock:     opts.Clock,
		SessionID: uuid.NewString(),
		UserAgent: "macdesigns-cli",
		Logger:    opts.Logger,
	})
	lines := bufio.NewScanner(opts.In)
	out := opts.Out

	for {
		d := g.CheckAccess(ctx)
		switch d.Kind {
		case gate.Authenticated:
			fmt.Fprintln(out, "Access granted.")
			return true, nil

		case gate.ShowLockoutCountdown:
			fmt.Fprintf(out, "Too many attempts. Locked for %s.\n", formatRemaining(d.RemainingSeconds))
			cd := gate.StartCountdown(ctx, g, opts.Interval, func(remaining int) {
				fmt.Fprintf(out, "Locked: %s\n", formatRemaining(remaining))
			})
			<-cd.Done()
			if err := ctx.Err(); err != nil {
				return false, err
			}

		case gate.ShowPasswordForm:
			fmt.Fprintf(out, "Password (%d attempts remaining): ", d.AttemptsRemaining)
			if !lines.Scan() {
				fmt.Fprintln(out)
				return false, lines.Err()
			}

			// Scanner strips the line ending; the rest is compared as typed.
			res, err := g.SubmitPassword(ctx, lines.Text())
			if err != nil {
				return false, err
			}
			if res.Kind == gate.Rejected {
				fmt.Fprintf(out, "Incorrect password. %d attempt(s) remaining.\n", res.AttemptsRemaining)
			}
		}
	}
}

// formatRemaining renders whole seconds as m:ss.
func formatRemaining(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
