package model

import "time"

const DefaultMongoPort = 27017

type ServiceRecord struct {
	Target   string `json:"target"`
	Port     int    `json:"port"`
	Priority int    `json:"priority"`
	Weight   int    `json:"weight"`
}

type AddressRecord struct {
	IP     string `json:"ip"`
	Family int    `json:"family"`
}

func (a AddressRecord) FamilyLabel() string {
	if a.Family == 6 {
		return "IPv6"
	}
	return "IPv4"
}

type ProbeOutcome struct {
	Address  string        `json:"address"`
	Port     int           `json:"port"`
	Success  bool          `json:"success"`
	TimedOut bool          `json:"timed_out"`
	Detail   string        `json:"detail"`
	Duration time.Duration `json:"duration"`
}

type TargetResult struct {
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Addresses []AddressRecord `json:"addresses,omitempty"`
	Error     string          `json:"error,omitempty"`
	Probes    []ProbeOutcome  `json:"probes,omitempty"`
}

type Diagnosis struct {
	Classification string `json:"classification"`
	Summary        string `json:"summary"`
}

type Report struct {
	ClusterHost    string          `json:"cluster_host"`
	ServiceName    string          `json:"service_name"`
	ServiceRecords []ServiceRecord `json:"service_records"`
	ServiceError   string          `json:"service_error,omitempty"`
	Members        []TargetResult  `json:"members"`
	Direct         TargetResult    `json:"direct"`
	Diagnosis      Diagnosis       `json:"diagnosis"`
}
