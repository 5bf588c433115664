package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jaxxstorm/atlastodo/internal/model"
)

func TestPrinterProbeLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.ProbeStarted("2001:db8::1", 27017)
	p.ProbeFinished(model.ProbeOutcome{Address: "2001:db8::1", Port: 27017, Detail: "TIMEOUT after 5000ms"})

	got := buf.String()
	if !strings.Contains(got, "Testing TCP [2001:db8::1]:27017 ... ") {
		t.Fatalf("missing target in %q", got)
	}
	if !strings.Contains(got, "FAIL") || !strings.HasSuffix(got, "TIMEOUT after 5000ms\n") {
		t.Fatalf("unexpected outcome line %q", got)
	}
}

func TestPrinterServiceRecords(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.ServiceRecords(nil)
	p.ServiceRecords([]model.ServiceRecord{{Target: "shard-00-00.example.net", Port: 27017, Priority: 0, Weight: 0}})

	got := buf.String()
	if !strings.Contains(got, "No SRV records found.") {
		t.Fatalf("missing empty notice in %q", got)
	}
	if !strings.Contains(got, "[0] target=shard-00-00.example.net, port=27017, priority=0, weight=0") {
		t.Fatalf("missing record line in %q", got)
	}
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(b []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestPrinterKeepsFirstWriteError(t *testing.T) {
	w := &failingWriter{}
	p := NewPrinter(w)
	p.Title("cluster0.example.net")
	p.Section(1, "SRV lookup")
	if p.Err() == nil {
		t.Fatalf("expected write error")
	}
	if w.writes != 1 {
		t.Fatalf("expected writes to stop after the first failure, got %d", w.writes)
	}
}
