package resolver

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaxxstorm/atlastodo/internal/dnsclient"
	"github.com/miekg/dns"
)

func newTestResolver(t *testing.T, nameservers []string, responder func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error)) (*Resolver, *dnsclient.MockTransport) {
	t.Helper()
	transport := &dnsclient.MockTransport{Responder: responder}
	client := dnsclient.NewWithTransports(dnsclient.Options{Mode: dnsclient.ModeUDP, Timeout: time.Second, Recursive: true}, transport, transport)
	hosts := filepath.Join(t.TempDir(), "hosts")
	return New(client, Config{Nameservers: nameservers, HostsFile: hosts, Timeout: time.Second}), transport
}

func writeHosts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write hosts: %v", err)
	}
	return path
}

func srv(name, target string, port uint16) dns.RR {
	return &dns.SRV{
		Hdr:      dns.RR_Header{Name: name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60},
		Target:   target,
		Port:     port,
		Priority: 0,
		Weight:   0,
	}
}

func TestServiceRecordsInAnswerOrder(t *testing.T) {
	r, transport := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetReply(msg)
		q := msg.Question[0].Name
		resp.Answer = []dns.RR{
			srv(q, "ac-1-shard-00-01.example.mongodb.net.", 27017),
			srv(q, "ac-1-shard-00-00.example.mongodb.net.", 27018),
		}
		return resp, time.Millisecond, nil
	})

	records, err := r.ServiceRecords(context.Background(), "cluster0.example.mongodb.net")
	if err != nil {
		t.Fatalf("srv lookup: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Target != "ac-1-shard-00-01.example.mongodb.net" || records[1].Port != 27018 {
		t.Fatalf("unexpected records: %#v", records)
	}
	calls := transport.Calls()
	if len(calls) != 1 || calls[0] != "10.0.0.2:53 _mongodb._tcp.cluster0.example.mongodb.net. SRV" {
		t.Fatalf("unexpected calls: %#v", calls)
	}
}

func TestServiceRecordsNXDOMAINIsEmpty(t *testing.T) {
	r, _ := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetRcode(msg, dns.RcodeNameError)
		return resp, time.Millisecond, nil
	})

	records, err := r.ServiceRecords(context.Background(), "typo.example.mongodb.net")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty slice, got %#v", records)
	}
}

func TestServiceRecordsServfailIsResolutionError(t *testing.T) {
	r, _ := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetRcode(msg, dns.RcodeServerFailure)
		return resp, time.Millisecond, nil
	})

	_, err := r.ServiceRecords(context.Background(), "cluster0.example.mongodb.net")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if rerr.Type != "SRV" || rerr.NotFound {
		t.Fatalf("unexpected error: %#v", rerr)
	}
}

func TestServiceRecordsMalformedName(t *testing.T) {
	r, transport := newTestResolver(t, []string{"10.0.0.2"}, nil)
	_, err := r.ServiceRecords(context.Background(), "bad..name")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if len(transport.Calls()) != 0 {
		t.Fatalf("expected no queries for malformed name")
	}
}

func TestQueryFailsOverToNextNameserver(t *testing.T) {
	r, transport := newTestResolver(t, []string{"10.0.0.2", "10.0.0.3"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		if server == "10.0.0.2:53" {
			return nil, 0, errors.New("i/o timeout")
		}
		resp := new(dns.Msg)
		resp.SetReply(msg)
		resp.Answer = []dns.RR{&dns.A{Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.10")}}
		return resp, time.Millisecond, nil
	})

	addrs, err := r.Addresses(context.Background(), "db.example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 1 || addrs[0].IP != "192.0.2.10" || addrs[0].Family != 4 {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}
	if len(transport.Calls()) != 4 {
		t.Fatalf("expected A and AAAA against both nameservers, got %#v", transport.Calls())
	}
}

func TestAddressesCombinesFamilies(t *testing.T) {
	r, _ := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		q := msg.Question[0]
		resp := new(dns.Msg)
		resp.SetReply(msg)
		switch q.Qtype {
		case dns.TypeA:
			resp.Answer = []dns.RR{
				&dns.CNAME{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: "edge.example.com."},
				&dns.A{Hdr: dns.RR_Header{Name: "edge.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.10")},
				&dns.A{Hdr: dns.RR_Header{Name: "edge.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.10")},
			}
		case dns.TypeAAAA:
			resp.Answer = []dns.RR{
				&dns.AAAA{Hdr: dns.RR_Header{Name: "edge.example.com.", Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60}, AAAA: net.ParseIP("2001:db8::10")},
			}
		}
		return resp, time.Millisecond, nil
	})

	addrs, err := r.Addresses(context.Background(), "www.example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 unique addresses, got %#v", addrs)
	}
	if addrs[0].Family != 4 || addrs[1].Family != 6 || addrs[1].IP != "2001:db8::10" {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}
}

func TestAddressesNXDOMAINIsError(t *testing.T) {
	r, _ := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetRcode(msg, dns.RcodeNameError)
		return resp, time.Millisecond, nil
	})

	_, err := r.Addresses(context.Background(), "missing.example.com")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) || !rerr.NotFound {
		t.Fatalf("expected not-found ResolutionError, got %v", err)
	}
}

func TestAddressesNoDataIsEmpty(t *testing.T) {
	r, _ := newTestResolver(t, []string{"10.0.0.2"}, func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetReply(msg)
		return resp, time.Millisecond, nil
	})

	addrs, err := r.Addresses(context.Background(), "empty.example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("expected no addresses, got %#v", addrs)
	}
}

func TestAddressesIPLiteral(t *testing.T) {
	r, transport := newTestResolver(t, []string{"10.0.0.2"}, nil)
	addrs, err := r.Addresses(context.Background(), "::1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 1 || addrs[0].Family != 6 {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}
	if len(transport.Calls()) != 0 {
		t.Fatalf("expected no queries for IP literal")
	}
}

func TestLoadNameserversFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	content := "# test\nsearch example.com\nnameserver 1.1.1.1\nnameserver fe80::1%eth0\nnameserver 1.1.1.1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	nameservers, err := loadNameservers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(nameservers) != 2 || nameservers[0] != "1.1.1.1" || nameservers[1] != "fe80::1%eth0" {
		t.Fatalf("unexpected nameservers: %#v", nameservers)
	}
}

func TestAddressesPreferHostsFile(t *testing.T) {
	transport := &dnsclient.MockTransport{}
	client := dnsclient.NewWithTransports(dnsclient.Options{Mode: dnsclient.ModeUDP, Timeout: time.Second, Recursive: true}, transport, transport)
	hosts := writeHosts(t, "# static entries\n127.0.0.1 localhost\n::1 localhost ip6-localhost\n192.0.2.50 Pinned.Example.Net db # primary\nfe80::1%lo0 localhost\n")
	r := New(client, Config{Nameservers: []string{"10.0.0.2"}, HostsFile: hosts, Timeout: time.Second})

	addrs, err := r.Addresses(context.Background(), "localhost")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 3 || addrs[0].IP != "127.0.0.1" || addrs[0].Family != 4 || addrs[1].IP != "::1" || addrs[1].Family != 6 || addrs[2].IP != "fe80::1%lo0" {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}

	addrs, err = r.Addresses(context.Background(), "pinned.example.net.")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 1 || addrs[0].IP != "192.0.2.50" {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}
	if len(transport.Calls()) != 0 {
		t.Fatalf("expected hosts entries to skip DNS, got %#v", transport.Calls())
	}
}

func TestAddressesFallBackToDNSWhenNotInHostsFile(t *testing.T) {
	transport := &dnsclient.MockTransport{Responder: func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
		resp := new(dns.Msg)
		resp.SetReply(msg)
		if msg.Question[0].Qtype == dns.TypeA {
			resp.Answer = []dns.RR{&dns.A{Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.10")}}
		}
		return resp, time.Millisecond, nil
	}}
	client := dnsclient.NewWithTransports(dnsclient.Options{Mode: dnsclient.ModeUDP, Timeout: time.Second, Recursive: true}, transport, transport)
	hosts := writeHosts(t, "127.0.0.1 localhost\n")
	r := New(client, Config{Nameservers: []string{"10.0.0.2"}, HostsFile: hosts, Timeout: time.Second})

	addrs, err := r.Addresses(context.Background(), "db.example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 1 || addrs[0].IP != "192.0.2.10" {
		t.Fatalf("unexpected addresses: %#v", addrs)
	}
	if len(transport.Calls()) != 2 {
		t.Fatalf("expected A and AAAA queries, got %#v", transport.Calls())
	}
}
