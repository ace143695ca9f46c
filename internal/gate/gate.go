// Package gate implements the portfolio access gate: a shared-secret check against
// an allowlist, a three-strike lockout persisted per browser profile, and a
// session-scoped flag that remembers a successful pass.
//
// The gate is a UX gate and not an access-control boundary. The allowlist ships in
// plaintext, the submission delay is cosmetic, and the profile identity is held by
// the client.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxAttempts is the number of failed submissions that triggers a lockout.
	MaxAttempts = 3

	// LockoutDuration is how long the gate refuses passwords after MaxAttempts.
	LockoutDuration = 15 * time.Minute

	// TickInterval is the period of the lockout countdown.
	TickInterval = 1 * time.Second

	// StateKey is the fixed storage key of the security record.
	StateKey = "security_state"
)

// DecisionKind classifies what the gate should render.
type DecisionKind int

const (
	ShowPasswordForm DecisionKind = iota
	ShowLockoutCountdown
	Authenticated
)

func (k DecisionKind) String() string {
	switch k {
	case ShowPasswordForm:
		return "form"
	case ShowLockoutCountdown:
		return "locked"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Decision is the result of CheckAccess.
type Decision struct {
	Kind              DecisionKind
	RemainingSeconds  int
	AttemptsRemaining int
}

// ResultKind classifies a password submission.
type ResultKind int

const (
	Accepted ResultKind = iota
	Rejected
	Blocked
)

func (k ResultKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Result is the outcome of SubmitPassword.
type Result struct {
	Kind              ResultKind
	AttemptsRemaining int
	LockoutSeconds    int
}

// Options wires a Gate. Allowlist, States and Flag are required.
type Options struct {
	Allowlist *Allowlist
	States    SecurityStateStore
	Flag      FlagStore

	Delay Delayer
	IPs   IPLookup
	Clock func() time.Time

	// Locker and LockKey serialize updates to a shared record across gates.
	Locker  *Locker
	LockKey string

	SessionID string
	UserAgent string

	// OnAuthenticated runs once per Accepted result.
	OnAuthenticated func()

	Logger *zap.Logger
}

// Gate evaluates access for one session of one profile.
type Gate struct {
	allow   *Allowlist
	states  SecurityStateStore
	flag    FlagStore
	delay   Delayer
	ips     IPLookup
	now     func() time.Time
	locker  *Locker
	lockKey string

	sessionID string
	userAgent string
	onAuth    func()
	logger    *zap.Logger

	mu        sync.Mutex
	displayed int
}

// New creates a gate. Missing optional collaborators get defaults: the 1-3s delay,
// the wall clock, an "unknown" IP and a private locker.
func New(opts Options) *Gate {
	g := &Gate{
		allow:     opts.Allowlist,
		states:    opts.States,
		flag:      opts.Flag,
		delay:     opts.Delay,
		ips:       opts.IPs,
		now:       opts.Clock,
		locker:    opts.Locker,
		lockKey:   opts.LockKey,
		sessionID: opts.SessionID,
		userAgent: opts.UserAgent,
		onAuth:    opts.OnAuthenticated,
		logger:    opts.Logger,
	}
	if g.delay == nil {
		g.delay = DefaultDelay()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.locker == nil {
		g.locker = NewLocker()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// CheckAccess decides what to render: the protected content, the lockout
// countdown, or the password form.
func (g *Gate) CheckAccess(ctx context.Context) Decision {
	if g.authenticated(ctx) {
		return Decision{Kind: Authenticated}
	}

	unlock := g.locker.Lock(g.lockKey)
	defer unlock()

	state, ok := g.load(ctx)
	now := g.now()

	if state.Locked(now) {
		remaining := state.Remaining(now)
		g.setDisplayed(remaining)
		return Decision{Kind: ShowLockoutCountdown, RemainingSeconds: remaining}
	}

	if ok && state.expired(now) {
		state = g.expire(ctx, state)
	}

	return Decision{Kind: ShowPasswordForm, AttemptsRemaining: attemptsLeft(state.Attempts)}
}

// SubmitPassword checks candidate against the allowlist and applies the lockout
// policy. Every call waits for the submission delay first. A cancelled ctx during
// the delay returns ctx.Err() and changes nothing.
func (g *Gate) SubmitPassword(ctx context.Context, candidate string) (Result, error) {
	if err := g.delay.Wait(ctx); err != nil {
		return Result{}, err
	}

	matched := g.allow.Contains(candidate)

	var ip string
	if !matched {
		ip = g.lookupIP(ctx)
	}

	unlock := g.locker.Lock(g.lockKey)
	state, ok := g.load(ctx)
	now := g.now()

	if state.Locked(now) {
		unlock()
		remaining := state.Remaining(now)
		g.setDisplayed(remaining)
		g.logger.Debug("submission refused during lockout",
			zap.String("session_id", g.sessionID),
			zap.Int("remaining_seconds", remaining))
		return Result{Kind: Blocked, LockoutSeconds: remaining}, nil
	}

	if ok && state.expired(now) {
		state.Attempts = 0
		state.BlockedUntil = time.Time{}
	}

	if matched {
		if ok {
			state.Attempts = 0
			state.BlockedUntil = time.Time{}
			g.save(ctx, state)
		}
		unlock()

		if err := g.flag.SetAuthenticated(ctx); err != nil {
			g.logger.Error("persist authentication flag", zap.Error(err))
		}
		g.logger.Info("gate passed", zap.String("session_id", g.sessionID))
		if g.onAuth != nil {
			g.onAuth()
		}
		return Result{Kind: Accepted}, nil
	}

	state.Attempts++
	state.LastAttemptAt = now
	state.SessionID = g.sessionID
	state.IPAddress = ip
	state.UserAgent = g.userAgent

	if state.Attempts >= MaxAttempts {
		state.BlockedUntil = now.Add(LockoutDuration)
		g.save(ctx, state)
		unlock()

		lockout := int(LockoutDuration / time.Second)
		g.setDisplayed(lockout)
		g.logger.Warn("gate locked",
			zap.String("session_id", g.sessionID),
			zap.String("ip", ip),
			zap.Int("attempts", state.Attempts),
			zap.Time("blocked_until", state.BlockedUntil))
		return Result{Kind: Blocked, LockoutSeconds: lockout}, nil
	}

	g.save(ctx, state)
	unlock()

	g.logger.Info("gate rejected password",
		zap.String("session_id", g.sessionID),
		zap.Int("attempts", state.Attempts))
	return Result{Kind: Rejected, AttemptsRemaining: attemptsLeft(state.Attempts)}, nil
}

// Tick advances the displayed lockout countdown by one second. It returns the new
// remaining value, and ok=false when no lockout is active. When the countdown
// reaches zero the lockout is cleared and the gate returns to the form.
func (g *Gate) Tick(ctx context.Context) (int, bool) {
	unlock := g.locker.Lock(g.lockKey)
	defer unlock()

	state, ok := g.load(ctx)
	if !ok || state.BlockedUntil.IsZero() {
		g.setDisplayed(0)
		return 0, false
	}

	now := g.now()
	wall := state.Remaining(now)

	g.mu.Lock()
	next := g.displayed
	if next <= 0 {
		next = wall
	}
	next--
	if wall < next {
		next = wall
	}
	if next < 0 {
		next = 0
	}
	g.displayed = next
	g.mu.Unlock()

	if next > 0 {
		return next, true
	}

	g.expire(ctx, state)
	return 0, true
}

// Remaining returns the countdown value last shown to the user.
func (g *Gate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.displayed
}

func (g *Gate) authenticated(ctx context.Context) bool {
	ok, err := g.flag.Authenticated(ctx)
	if err != nil {
		g.logger.Warn("read authentication flag", zap.Error(err))
		return false
	}
	return ok
}

// load fails open: a storage error reads as "no prior lockout, zero attempts".
func (g *Gate) load(ctx context.Context) (SecurityState, bool) {
	state, ok, err := g.states.Load(ctx)
	if err != nil {
		g.logger.Warn("load security state, treating as empty", zap.Error(err))
		return SecurityState{}, false
	}
	return state, ok
}

func (g *Gate) save(ctx context.Context, state SecurityState) {
	if err := g.states.Save(ctx, state); err != nil {
		g.logger.Error("save security state", zap.Error(err))
	}
}

func (g *Gate) expire(ctx context.Context, state SecurityState) SecurityState {
	state.Attempts = 0
	state.BlockedUntil = time.Time{}
	g.save(ctx, state)
	g.setDisplayed(0)
	g.logger.Info("lockout expired", zap.String("session_id", g.sessionID))
	return state
}

func (g *Gate) lookupIP(ctx context.Context) string {
	if g.ips == nil {
		return UnknownIP
	}
	ip, err := g.ips.Lookup(ctx)
	if err != nil || ip == "" {
		g.logger.Debug("ip lookup failed", zap.Error(err))
		return UnknownIP
	}
	return ip
}

func (g *Gate) setDisplayed(v int) {
	g.mu.Lock()
	g.displayed = v
	g.mu.Unlock()
}

func attemptsLeft(attempts int) int {
	if left := MaxAttempts - attempts; left > 0 {
		return left
	}
	return 0
}

// String renders a decision for logs and the CLI.
func (d Decision) String() string {
	switch d.Kind {
	case ShowLockoutCountdown:
		return fmt.Sprintf("locked (%ds remaining)", d.RemainingSeconds)
	case ShowPasswordForm:
		return fmt.Sprintf("form (%d attempts remaining)", d.AttemptsRemaining)
	default:
		return d.Kind.String()
	}
}
