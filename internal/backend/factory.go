package backend

import (
	"context"
	"fmt"

	"billtrack/internal/airtable"
	"billtrack/internal/log"
	"billtrack/internal/notify"
	"billtrack/internal/ports"
	"billtrack/internal/sheets"
	gsheet "billtrack/internal/sheets/google"
	"billtrack/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	cfg          Config
	notifier     notify.Notifier
	logger       *log.Logger
	constructors map[ports.Kind]Constructor
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory wires one constructor per backend. Simulated backends share
// their state across adapters built by the same factory, so reconnecting
// sees earlier writes.
func NewFactory(cfg Config, notifier notify.Notifier, logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	f := &DefaultFactory{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentBackend),
	}

	var sheetDial sheets.Dialer
	var tableDial airtable.Dialer
	if cfg.Live {
		sheetDial = f.liveSheetsDial
		tableDial = airtable.NewClient(cfg.AirtableAPIURL, cfg.AirtableTable, nil, logger).Dial
	} else {
		sheetDial = memory.NewServer(memory.WithLatency(cfg.Latency), memory.WithSeed(memory.SampleBills())).Dial
		tableDial = airtable.NewMemoryTable(cfg.Latency).Dial
	}

	f.constructors = map[ports.Kind]Constructor{
		ports.KindSheets: func() ports.Adapter {
			return sheets.New(sheetDial, notifier, logger, sheets.WithSheetName(cfg.GoogleSheetName))
		},
		ports.KindAirtable: func() ports.Adapter {
			return airtable.New(tableDial, notifier, logger)
		},
	}

	f.logger.Info("Initialized backend factory",
		"default", ParseKind(string(cfg.Default)).String(),
		"live", cfg.Live,
		"latency", cfg.Latency.String())
	return f
}

// New implements Factory.New
func (f *DefaultFactory) New(key string) ports.Adapter {
	kind := ParseKind(key)
	if key != "" && kind.String() != key {
		f.logger.Warn("Unknown backend key, using default", log.FieldBackend, key, "default", kind.String())
	}
	return f.constructors[kind]()
}

// Default returns an adapter for the configured default backend.
func (f *DefaultFactory) Default() ports.Adapter {
	return f.New(string(f.cfg.Default))
}

func (f *DefaultFactory) liveSheetsDial(ctx context.Context, spreadsheetID string) (sheets.Values, error) {
	svc, err := gsheet.NewService(ctx, f.cfg.GoogleCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return gsheet.NewDialer(svc, f.cfg.GoogleSheetName, f.logger).Dial(ctx, spreadsheetID)
}
