// Package exemption decides when a reward becomes exempt from
// capital-gains tax. Jurisdiction rules live in a policy table keyed by
// country code; the eligibility algorithm itself is jurisdiction-blind,
// so new countries are added as data, not code.
package exemption

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"gopkg.in/yaml.v3"
)

type Policy struct {
	Enabled              bool   `yaml:"enabled"`
	HoldingPeriodSeconds uint64 `yaml:"holdingPeriodSeconds"`
}

type PolicyTable map[string]Policy

const twoYearsSec = 2 * 365 * 24 * 3600

// DefaultPolicyTable covers the jurisdictions shipped with the engine.
// Countries absent from the table are never exempt.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		"DE": {Enabled: true, HoldingPeriodSeconds: twoYearsSec},
		"AT": {Enabled: true, HoldingPeriodSeconds: twoYearsSec},
	}
}

// LoadPolicyTable reads a YAML policy table from disk, layered over the
// default table so a partial file only overrides what it names.
func LoadPolicyTable(path string) (PolicyTable, error) {
	table := DefaultPolicyTable()
	if path == "" {
		return table, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	loaded := make(map[string]Policy)
	if err := yaml.Unmarshal(contents, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	for country, policy := range loaded {
		table[strings.ToUpper(country)] = policy
	}
	return table, nil
}

func (t PolicyTable) Lookup(country string) (Policy, bool) {
	policy, ok := t[strings.ToUpper(country)]
	return policy, ok
}

// Result is the eligibility state of one reward at one point in time.
type Result struct {
	Exempt        bool
	ProgressRatio float64
	// ExemptSince is the unix timestamp at which the holding period
	// completes. Zero when the jurisdiction has no exemption.
	ExemptSince uint64
}

// Evaluate computes the exemption state for one reward event. It is a
// pure function of the event timestamp, the user's holding override, the
// country policy and `now`: identical inputs always produce identical
// outputs.
func Evaluate(
	event *rewardTypes.RewardEvent,
	holding rewardTypes.HoldingState,
	table PolicyTable,
	country string,
	now time.Time,
) Result {
	policy, ok := table.Lookup(country)
	if !ok || !policy.Enabled || policy.HoldingPeriodSeconds == 0 {
		return Result{}
	}

	// a sold reward can no longer age into exemption
	if holding == rewardTypes.HoldingState_Sold {
		return Result{}
	}

	exemptSince := event.TimestampSec + policy.HoldingPeriodSeconds
	nowSec := uint64(now.Unix())

	ratio := 0.0
	if nowSec > event.TimestampSec {
		ratio = float64(nowSec-event.TimestampSec) / float64(policy.HoldingPeriodSeconds)
		if ratio > 1.0 {
			ratio = 1.0
		}
	}

	return Result{
		Exempt:        nowSec >= exemptSince,
		ProgressRatio: ratio,
		ExemptSince:   exemptSince,
	}
}
