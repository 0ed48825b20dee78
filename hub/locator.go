package hub

import (
	"context"
	"fmt"

	"github.com/arloliu/go-dialhub/dialwire"
	"github.com/arloliu/go-dialhub/logger"
	"github.com/arloliu/go-dialhub/transport"
)

// Locator probes candidate serial ports to find the one hosting the hub.
//
// Policy from field experience: a hub that is slow to answer its first
// command is far more common than a false-positive port, so when no
// candidate produces a plausible response the locator falls back to the
// first enumerated candidate instead of failing outright. The Validated
// flag in the result records which path was taken.
type Locator struct {
	cfg    *Config
	logger logger.Logger

	// indirected for tests
	listPorts    func() ([]string, error)
	newTransport func() transport.Transport
}

// LocateResult reports the chosen port and whether it actually answered the
// diagnostic probe.
type LocateResult struct {
	PortName  string
	Validated bool
}

// NewLocator creates a Locator using the config's transport and timing.
func NewLocator(cfg *Config) *Locator {
	return &Locator{
		cfg:          cfg,
		logger:       cfg.GetLogger(),
		listPorts:    transport.ListPorts,
		newTransport: cfg.newTransport,
	}
}

// Locate enumerates candidate ports and probes each with the rescan
// diagnostic, which is harmless to issue speculatively. A port is accepted
// as the hub when any well-formed response frame arrives; no operation-code
// echo is required because firmware response content on this diagnostic
// varies across revisions.
func (l *Locator) Locate(ctx context.Context) (*LocateResult, error) {
	candidates, err := l.listPorts()
	if err != nil {
		return nil, fmt.Errorf("dialhub: locating hub: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoPortsFound
	}

	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if l.probe(ctx, name) {
			l.logger.Info("hub located", "port", name)

			return &LocateResult{PortName: name, Validated: true}, nil
		}
	}

	l.logger.Warn("no port answered the probe, falling back to first candidate", "port", candidates[0])

	return &LocateResult{PortName: candidates[0], Validated: false}, nil
}

func (l *Locator) probe(ctx context.Context, portName string) bool {
	tr := l.newTransport()

	if err := tr.Open(portName); err != nil {
		l.logger.Debug("probe open failed", "port", portName, "error", err)

		return false
	}
	defer func() { _ = tr.Close() }()

	if err := tr.ResetInput(); err != nil {
		return false
	}
	if err := tr.Write(dialwire.NewRescanCommand().Encode()); err != nil {
		l.logger.Debug("probe write failed", "port", portName, "error", err)

		return false
	}

	// Any complete frame passes; ReadFrame already enforces the marker and
	// header-declared length.
	if _, err := dialwire.ReadFrame(ctx, tr.ReadByte, l.cfg.ProbeTimeout()); err != nil {
		l.logger.Debug("probe got no frame", "port", portName, "error", err)

		return false
	}

	return true
}
