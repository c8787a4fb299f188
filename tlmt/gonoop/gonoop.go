package gonoop

import (
	"context"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt"
)

type service struct {
}

// New returns a telemetry sink that drops everything. Used when telemetry
// is disabled or unconfigured.
func New() tlmt.Telemetry {
	return &service{}
}

func (s *service) Send(context.Context, tlmt.Event) error {
	return nil
}

func (s *service) Close() error {
	return nil
}
