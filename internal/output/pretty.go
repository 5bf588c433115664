package output

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jaxxstorm/atlastodo/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// Printer writes the diagnostic report line by line as results arrive. The
// first write error is kept and every later write is skipped.
type Printer struct {
	w   io.Writer
	err error
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) Title(clusterHost string) {
	p.printf("\n%s Debugging DNS & TCP for MongoDB cluster host: %s\n", titleStyle.Render("atlasdiag"), clusterHost)
}

func (p *Printer) Section(index int, text string) {
	p.printf("\n%s\n", sectionStyle.Render(fmt.Sprintf("%d) %s", index, text)))
}

func (p *Printer) Result(format string, args ...any) {
	p.printf("   -> %s\n", fmt.Sprintf(format, args...))
}

func (p *Printer) ServiceRecords(records []model.ServiceRecord) {
	if len(records) == 0 {
		p.Result("No SRV records found.")
		return
	}
	p.Result("Found %d SRV record(s):", len(records))
	for i, r := range records {
		p.printf("     [%d] target=%s, port=%d, priority=%d, weight=%d\n", i, r.Target, r.Port, r.Priority, r.Weight)
	}
}

func (p *Printer) Addresses(addrs []model.AddressRecord) {
	if len(addrs) == 0 {
		p.Result("No addresses found.")
		return
	}
	for i, a := range addrs {
		p.Result("[%d] %s: %s", i, a.FamilyLabel(), a.IP)
	}
}

// ProbeStarted leaves the line open so the outcome lands next to its target.
func (p *Printer) ProbeStarted(address string, port int) {
	p.printf("   -> Testing TCP %s ... ", net.JoinHostPort(address, strconv.Itoa(port)))
}

func (p *Printer) ProbeFinished(outcome model.ProbeOutcome) {
	if outcome.Success {
		p.printf("%s %s\n", successStyle.Render("OK"), outcome.Detail)
		return
	}
	p.printf("%s %s\n", failureStyle.Render("FAIL"), outcome.Detail)
}

func (p *Printer) Summary(guide []string, diagnosis model.Diagnosis) {
	lines := []string{"", "Debug complete. Interpret results:"}
	for _, hint := range guide {
		lines = append(lines, "- "+hint)
	}
	lines = append(lines, "")
	summary := fmt.Sprintf("%s %s", diagnosis.Classification, diagnosis.Summary)
	if diagnosis.Classification == "SUCCESS" {
		lines = append(lines, successStyle.Render(summary))
	} else {
		lines = append(lines, failureStyle.Render(summary))
	}
	p.printf("%s\n", strings.Join(lines, "\n"))
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
