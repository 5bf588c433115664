package analyze

import (
	"fmt"

	"github.com/jaxxstorm/atlastodo/internal/model"
)

type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "SUCCESS"
	OutcomeSRVLookupFailed OutcomeKind = "SRV_LOOKUP_FAILED"
	OutcomeSRVMissing      OutcomeKind = "SRV_MISSING"
	OutcomeDNSFailure      OutcomeKind = "DNS_FAILURE"
	OutcomeTCPBlocked      OutcomeKind = "TCP_BLOCKED"
	OutcomeTCPPartial      OutcomeKind = "TCP_PARTIAL"
	OutcomeNoTargets       OutcomeKind = "NO_TARGETS"
)

var InterpretationGuide = []string{
	"If SRV lookup fails -> DNS/SRV problem (wrong cluster name or DNS resolution issue).",
	"If SRV returns targets but DNS lookup of targets fails -> DNS resolution issue.",
	"If DNS works but TCP tests fail -> network/firewall/proxy blocking (or port blocked).",
	"If TCP succeeds but your driver still fails -> TLS/auth issue to investigate next.",
}

// Diagnose classifies a finished run. Checks run from the DNS layer up so the
// lowest failing layer names the result.
func Diagnose(report model.Report) model.Diagnosis {
	memberFailures := 0
	for _, member := range report.Members {
		if member.Error != "" {
			memberFailures++
		}
	}

	probes, failed := 0, 0
	for _, target := range append(append([]model.TargetResult{}, report.Members...), report.Direct) {
		for _, p := range target.Probes {
			probes++
			if !p.Success {
				failed++
			}
		}
	}

	switch {
	case report.ServiceError != "":
		return diagnosis(OutcomeSRVLookupFailed, "SRV lookup failed: "+report.ServiceError)
	case len(report.ServiceRecords) == 0 && len(report.Direct.Addresses) == 0:
		return diagnosis(OutcomeNoTargets, "no SRV records and the cluster host has no addresses")
	case memberFailures > 0:
		return diagnosis(OutcomeDNSFailure, fmt.Sprintf("%d of %d SRV targets did not resolve", memberFailures, len(report.Members)))
	case probes == 0:
		return diagnosis(OutcomeNoTargets, "no addresses to probe")
	case failed == probes:
		return diagnosis(OutcomeTCPBlocked, "no TCP connection succeeded")
	case failed > 0:
		return diagnosis(OutcomeTCPPartial, fmt.Sprintf("%d of %d TCP probes failed", failed, probes))
	case len(report.ServiceRecords) == 0:
		return diagnosis(OutcomeSRVMissing, "cluster host accepts connections but publishes no SRV records")
	default:
		return diagnosis(OutcomeSuccess, fmt.Sprintf("all %d TCP probes connected", probes))
	}
}

func diagnosis(kind OutcomeKind, summary string) model.Diagnosis {
	return model.Diagnosis{Classification: string(kind), Summary: summary}
}
