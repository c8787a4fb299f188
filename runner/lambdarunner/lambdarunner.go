// Package lambdarunner runs one deadline-bounded poll pass per scheduled
// AWS Lambda invocation. The poller's wall-clock budget keeps each
// invocation inside the function timeout regardless of queue depth.
package lambdarunner

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/poller"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/runner"
)

var _ runner.Runner = (*lambdaRunner)(nil)

// pollRunner is what one invocation needs from the wired services.
type pollRunner interface {
	Run(ctx context.Context) (poller.Stats, error)
}

type lambdaRunner struct {
	logger   *zap.Logger
	services *runner.Services
	poller   pollRunner
}

// output is the invocation result surfaced to the scheduler's logs.
type output struct {
	Claimed     int  `json:"claimed"`
	Processed   int  `json:"processed"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	DeadlineHit bool `json:"deadline_hit"`
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeAwsLambda {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	logger := runner.NewLogger(cfg.Debug)

	services, err := runner.BuildServices(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &lambdaRunner{
		logger:   logger,
		services: services,
		poller:   services.Poller,
	}, nil
}

func (l *lambdaRunner) Run(ctx context.Context) error {
	lambda.StartWithOptions(l.handler, lambda.WithContext(ctx))

	return nil
}

func (l *lambdaRunner) Close(context.Context) error {
	return l.services.Close()
}

// handler runs one poll pass. The event payload is a scheduler tick and
// carries nothing we use.
func (l *lambdaRunner) handler(ctx context.Context, _ map[string]any) (output, error) {
	stats, err := l.poller.Run(ctx)
	if err != nil {
		l.logger.Error("poll pass failed", zap.Error(err))

		return output{}, err
	}

	l.logger.Info("poll pass done",
		zap.Int("claimed", stats.Claimed),
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Bool("deadline_hit", stats.DeadlineHit))

	return output{
		Claimed:     stats.Claimed,
		Processed:   stats.Processed,
		Succeeded:   stats.Succeeded,
		Failed:      stats.Failed,
		DeadlineHit: stats.DeadlineHit,
	}, nil
}
