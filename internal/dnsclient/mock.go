package dnsclient

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type MockTransport struct {
	Responder func(server string, msg *dns.Msg) (*dns.Msg, time.Duration, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockTransport) Exchange(ctx context.Context, server string, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	m.mu.Lock()
	m.calls = append(m.calls, server+" "+msg.Question[0].Name+" "+dns.TypeToString[msg.Question[0].Qtype])
	m.mu.Unlock()
	if m.Responder == nil {
		return nil, 0, nil
	}
	return m.Responder(server, msg)
}

// Calls returns "server qname qtype" for every exchange seen so far.
func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}
