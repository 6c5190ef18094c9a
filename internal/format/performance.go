package format

import (
	"fmt"
	"strconv"

	domperf "github.com/kailas-cloud/invoicegate/internal/domain/performance"
)

// Performance period kinds.
const (
	KindAnnual     = "annual"
	KindCumulative = "cumulative"
	PeriodAllTime  = "all_time"
)

// PerformanceResult is an agent's sales summary for one period.
type PerformanceResult struct {
	Period      string `json:"period"`
	Kind        string `json:"kind"`
	Found       bool   `json:"found"`
	Sales       int64  `json:"sales"`
	Invoiced    string `json:"invoiced"`
	Collected   string `json:"collected"`
	Outstanding string `json:"outstanding"`
}

// ZoneInfo is an assigned zone.
type ZoneInfo struct {
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// ZoneResult is the outcome of a zone lookup.
type ZoneResult struct {
	Found   bool      `json:"found"`
	Agent   string    `json:"agent"`
	HasZone bool      `json:"has_zone"`
	Zone    *ZoneInfo `json:"zone"`
}

// Performance renders s.
func Performance(s domperf.Summary) PerformanceResult {
	out := PerformanceResult{
		Period:      PeriodAllTime,
		Kind:        KindCumulative,
		Found:       s.Found,
		Sales:       s.Sales,
		Invoiced:    s.Invoiced.StringFixed(AmountDecimals),
		Collected:   s.Collected.StringFixed(AmountDecimals),
		Outstanding: s.Outstanding().StringFixed(AmountDecimals),
	}
	if s.Year != nil {
		out.Period = strconv.Itoa(*s.Year)
		out.Kind = KindAnnual
	}
	return out
}

// Zone renders z.
func Zone(z domperf.Zone) ZoneResult {
	out := ZoneResult{Found: z.Found, Agent: z.AgentName, HasZone: z.HasZone()}
	if out.HasZone {
		out.Zone = &ZoneInfo{Name: z.ZoneName, City: z.City}
	}
	return out
}

// Text renders a human-readable summary.
func (r PerformanceResult) Text() string {
	period := "over your whole history"
	if r.Kind == KindAnnual {
		period = "in " + r.Period
	}
	if !r.Found {
		return "No performance data recorded " + period + "."
	}
	return fmt.Sprintf("Performance %s: %d sale(s), invoiced %s, collected %s, outstanding %s.",
		period, r.Sales, r.Invoiced, r.Collected, r.Outstanding)
}

// Text renders a human-readable summary.
func (r ZoneResult) Text() string {
	switch {
	case !r.Found:
		return "You are not registered in the agents directory."
	case !r.HasZone:
		return fmt.Sprintf("%s, you have no zone assigned.", r.Agent)
	case r.Zone.City != "":
		return fmt.Sprintf("%s, your zone is %s (%s).", r.Agent, r.Zone.Name, r.Zone.City)
	default:
		return fmt.Sprintf("%s, your zone is %s.", r.Agent, r.Zone.Name)
	}
}
