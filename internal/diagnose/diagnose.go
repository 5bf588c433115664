package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/analyze"
	"github.com/jaxxstorm/atlastodo/internal/model"
	"github.com/jaxxstorm/atlastodo/internal/output"
	"github.com/jaxxstorm/atlastodo/internal/probe"
	"github.com/jaxxstorm/atlastodo/internal/resolver"
	"go.uber.org/zap"
)

type Resolver interface {
	ServiceRecords(ctx context.Context, clusterHost string) ([]model.ServiceRecord, error)
	Addresses(ctx context.Context, host string) ([]model.AddressRecord, error)
}

type Prober interface {
	Probe(ctx context.Context, address string, port int, timeout time.Duration) model.ProbeOutcome
}

type Config struct {
	ProbeTimeout time.Duration
	Logger       *zap.Logger
}

type Orchestrator struct {
	resolver Resolver
	prober   Prober
	config   Config
}

func New(r Resolver, p Prober, cfg Config) *Orchestrator {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = probe.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{resolver: r, prober: p, config: cfg}
}

// Run resolves and probes every member of clusterHost, then the host itself,
// one target at a time, writing the report to out as each step completes.
// Per-target failures are recorded in the report; the returned error is only
// set when the run itself could not complete.
func (o *Orchestrator) Run(ctx context.Context, clusterHost string, out io.Writer) (report model.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("diagnostic run aborted: %v", r)
		}
	}()

	clusterHost = strings.TrimSuffix(strings.TrimSpace(clusterHost), ".")
	if clusterHost == "" {
		return report, errors.New("cluster host is required")
	}

	printer := output.NewPrinter(out)
	report.ClusterHost = clusterHost
	report.ServiceName = resolver.ServiceName(clusterHost)

	printer.Title(clusterHost)
	printer.Section(1, "SRV lookup: "+report.ServiceName)
	records, err := o.resolver.ServiceRecords(ctx, clusterHost)
	if err != nil {
		o.config.Logger.Info("srv lookup failed", zap.String("name", report.ServiceName), zap.Error(err))
		report.ServiceError = err.Error()
		printer.Result("SRV lookup failed: %v", err)
	} else {
		printer.ServiceRecords(records)
	}
	report.ServiceRecords = records

	for _, record := range records {
		port := record.Port
		if port == 0 {
			port = model.DefaultMongoPort
		}
		printer.Section(2, "Resolve A/AAAA for: "+record.Target)
		member := o.probeHost(ctx, printer, record.Target, port, func(err error) {
			printer.Result("DNS lookup failed for %s: %v", record.Target, err)
		})
		report.Members = append(report.Members, member)
	}

	printer.Section(3, "Direct lookup for cluster host: "+clusterHost)
	report.Direct = o.probeHost(ctx, printer, clusterHost, model.DefaultMongoPort, func(err error) {
		printer.Result("Direct lookup failed: %v", err)
	})

	report.Diagnosis = analyze.Diagnose(report)
	printer.Summary(analyze.InterpretationGuide, report.Diagnosis)

	if err := printer.Err(); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

func (o *Orchestrator) probeHost(ctx context.Context, printer *output.Printer, host string, port int, onLookupError func(error)) model.TargetResult {
	result := model.TargetResult{Host: host, Port: port}

	addrs, err := o.resolver.Addresses(ctx, host)
	if err != nil {
		o.config.Logger.Info("address lookup failed", zap.String("host", host), zap.Error(err))
		result.Error = err.Error()
		onLookupError(err)
		return result
	}
	result.Addresses = addrs
	printer.Addresses(addrs)

	for _, addr := range addrs {
		printer.ProbeStarted(addr.IP, port)
		outcome := o.prober.Probe(ctx, addr.IP, port, o.config.ProbeTimeout)
		printer.ProbeFinished(outcome)
		result.Probes = append(result.Probes, outcome)
	}
	return result
}
