package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/dnsclient"
	"github.com/jaxxstorm/atlastodo/internal/model"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const MongoServicePrefix = "_mongodb._tcp."

type Config struct {
	Nameservers []string
	// HostsFile is consulted before DNS, like the system resolver does.
	HostsFile string
	Timeout   time.Duration
	Logger    *zap.Logger
}

type Resolver struct {
	client *dnsclient.Client
	config Config
}

func New(client *dnsclient.Client, cfg Config) *Resolver {
	if len(cfg.Nameservers) == 0 {
		cfg.Nameservers = SystemNameservers()
	}
	if cfg.HostsFile == "" {
		cfg.HostsFile = DefaultHostsFile
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Resolver{client: client, config: cfg}
}

func ServiceName(clusterHost string) string {
	return MongoServicePrefix + strings.TrimSuffix(clusterHost, ".")
}

// ServiceRecords looks up the MongoDB SRV records advertised for clusterHost.
// A name with no SRV records yields an empty slice rather than an error.
func (r *Resolver) ServiceRecords(ctx context.Context, clusterHost string) ([]model.ServiceRecord, error) {
	name := ServiceName(clusterHost)
	resp, err := r.query(ctx, name, dns.TypeSRV)
	if err != nil {
		var rerr *ResolutionError
		if errors.As(err, &rerr) && rerr.NotFound {
			return []model.ServiceRecord{}, nil
		}
		return nil, err
	}

	records := []model.ServiceRecord{}
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		records = append(records, model.ServiceRecord{
			Target:   strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
		})
	}
	return records, nil
}

// Addresses resolves host to its IPv4 then IPv6 addresses. Entries in the hosts
// file win over DNS. One family failing is tolerated as long as the other answered.
func (r *Resolver) Addresses(ctx context.Context, host string) ([]model.AddressRecord, error) {
	host = strings.TrimSuffix(host, ".")
	if ip := net.ParseIP(host); ip != nil {
		return []model.AddressRecord{addressRecord(ip)}, nil
	}

	pinned, err := lookupHosts(r.config.HostsFile, host)
	if err != nil {
		r.config.Logger.Warn("failed to read hosts file", zap.String("path", r.config.HostsFile), zap.Error(err))
	}
	if len(pinned) > 0 {
		r.config.Logger.Debug("address from hosts file", zap.String("host", host), zap.String("path", r.config.HostsFile))
		return dedupeAddresses(pinned), nil
	}

	v4, errA := r.lookupAddresses(ctx, host, dns.TypeA)
	v6, errAAAA := r.lookupAddresses(ctx, host, dns.TypeAAAA)
	if errA != nil && errAAAA != nil {
		return nil, errA
	}

	return dedupeAddresses(append(v4, v6...)), nil
}

func dedupeAddresses(records []model.AddressRecord) []model.AddressRecord {
	seen := map[string]struct{}{}
	out := []model.AddressRecord{}
	for _, rec := range records {
		if _, ok := seen[rec.IP]; ok {
			continue
		}
		seen[rec.IP] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func (r *Resolver) lookupAddresses(ctx context.Context, host string, qtype uint16) ([]model.AddressRecord, error) {
	resp, err := r.query(ctx, host, qtype)
	if err != nil {
		return nil, err
	}
	out := []model.AddressRecord{}
	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, addressRecord(record.A))
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				out = append(out, addressRecord(record.AAAA))
			}
		}
	}
	return out, nil
}

// query asks each configured nameserver in turn until one gives a usable answer.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	typeName := dns.TypeToString[qtype]
	if _, ok := dns.IsDomainName(name); !ok || name == "" {
		return nil, &ResolutionError{Name: name, Type: typeName, Err: errors.New("malformed domain name")}
	}

	var errs []error
	for _, ns := range r.config.Nameservers {
		ctxReq, cancel := context.WithTimeout(ctx, r.config.Timeout)
		resp, rtt, transport, err := r.client.Exchange(ctxReq, ns, r.client.BuildQuery(name, qtype))
		cancel()

		server := dnsclient.NormalizeServer(ns)
		if err != nil {
			r.config.Logger.Debug("nameserver query failed",
				zap.String("server", server),
				zap.String("name", name),
				zap.String("type", typeName),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}

		r.config.Logger.Debug("nameserver answered",
			zap.String("server", server),
			zap.String("name", name),
			zap.String("type", typeName),
			zap.String("rcode", dns.RcodeToString[resp.Rcode]),
			zap.String("transport", transport),
			zap.Duration("rtt", rtt),
		)

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, &ResolutionError{Name: name, Type: typeName, NotFound: true}
		default:
			errs = append(errs, fmt.Errorf("%s: %s", server, dns.RcodeToString[resp.Rcode]))
		}
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no nameservers configured"))
	}
	return nil, &ResolutionError{Name: name, Type: typeName, Err: errors.Join(errs...)}
}

func addressRecord(ip net.IP) model.AddressRecord {
	if ip.To4() != nil {
		return model.AddressRecord{IP: ip.String(), Family: 4}
	}
	return model.AddressRecord{IP: ip.String(), Family: 6}
}
