package contact

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"macdesigns/internal/gate"
)

// Mode tells the visitor whether a real message left the building.
type Mode string

const (
	ModeDemo       Mode = "demo"
	ModeProduction Mode = "production"
)

// ErrDemoFailure is the simulated network failure of demo mode.
var ErrDemoFailure = errors.New("demo network simulation - random failure for testing")

// Notifier delivers a formatted message to the owner and returns a delivery id.
type Notifier interface {
	Send(ctx context.Context, body string) (string, error)
	Mode() Mode
}

// DemoNotifier pretends to send: it waits 1.5-2.5s and succeeds 95% of the time.
type DemoNotifier struct {
	Delay       gate.Delayer
	SuccessRate float64
	Chance      func() float64
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewDemoNotifier returns the demo notifier with its usual timing.
func NewDemoNotifier(logger *zap.Logger) *DemoNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemoNotifier{
		Delay:       gate.RandomDelay{Base: 1500 * time.Millisecond, Jitter: time.Second},
		SuccessRate: 0.95,
		Chance:      rand.Float64,
		Now:         time.Now,
		Logger:      logger,
	}
}

func (d *DemoNotifier) Mode() Mode { return ModeDemo }

func (d *DemoNotifier) Send(ctx context.Context, body string) (string, error) {
	if d.Delay != nil {
		if err := d.Delay.Wait(ctx); err != nil {
			return "", err
		}
	}
	if d.Chance() >= d.SuccessRate {
		return "", ErrDemoFailure
	}

	id := "demo_" + strconv.FormatInt(d.Now().UnixMilli(), 10)
	d.Logger.Info("demo message delivered, nothing sent",
		zap.String("message_id", id),
		zap.Int("length", len(body)))
	return id, nil
}

// SESAPI is the slice of the SES client the relay uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// RelayNotifier sends the message as an email through SES to an email-to-SMS
// gateway address, so it arrives on the owner's phone as a text.
type RelayNotifier struct {
	client SESAPI
	from   string
	to     string
	logger *zap.Logger
}

// NewRelayNotifier loads the default AWS credential chain for region.
func NewRelayNotifier(ctx context.Context, region, from, to string, logger *zap.Logger) (*RelayNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewRelayNotifierWithClient(ses.NewFromConfig(cfg), from, to, logger), nil
}

// NewRelayNotifierWithClient wires a relay around an existing SES client.
func NewRelayNotifierWithClient(client SESAPI, from, to string, logger *zap.Logger) *RelayNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayNotifier{client: client, from: from, to: to, logger: logger}
}

func (r *RelayNotifier) Mode() Mode { return ModeProduction }

func (r *RelayNotifier) Send(ctx context.Context, body string) (string, error) {
	out, err := r.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(r.from),
		Destination: &types.Destination{ToAddresses: []string{r.to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String("Portfolio contact")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		r.logger.Error("relay send failed", zap.Error(err))
		return "", fmt.Errorf("relay message: %w", err)
	}

	id := aws.ToString(out.MessageId)
	r.logger.Info("relay message sent", zap.String("ses_message_id", id))
	return id, nil
}
