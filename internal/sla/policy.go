package sla

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Policies maps a ticket priority to its resolution target.
type Policies struct {
	targets  map[domain.TicketPriority]time.Duration
	fallback time.Duration
}

type policyFile struct {
	Default string            `yaml:"default"`
	Targets map[string]string `yaml:"targets"`
}

// DefaultPolicies returns the built-in resolution targets.
func DefaultPolicies() *Policies {
	return &Policies{
		targets: map[domain.TicketPriority]time.Duration{
			domain.TicketPriorityUrgent: 4 * time.Hour,
			domain.TicketPriorityHigh:   8 * time.Hour,
			domain.TicketPriorityMedium: 24 * time.Hour,
			domain.TicketPriorityLow:    72 * time.Hour,
		},
		fallback: 24 * time.Hour,
	}
}

// LoadPolicies reads a YAML policy file over the defaults. An empty path returns the
// defaults unchanged.
func LoadPolicies(path string) (*Policies, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicies(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sla policy file: %w", err)
	}
	return ParsePolicies(raw)
}

// ParsePolicies decodes YAML of the form
//
//	default: 24h
//	targets:
//	  URGENT: 2h
//	  HIGH: 6h
func ParsePolicies(raw []byte) (*Policies, error) {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sla policies: %w", err)
	}

	policies := DefaultPolicies()
	if file.Default != "" {
		d, err := parseTarget(file.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		policies.fallback = d
	}
	for name, value := range file.Targets {
		priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(name)))
		if !priority.Valid() {
			return nil, fmt.Errorf("unknown priority %q", name)
		}
		d, err := parseTarget(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", priority, err)
		}
		policies.targets[priority] = d
	}
	return policies, nil
}

func parseTarget(value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("target %q must be positive", value)
	}
	return d, nil
}

// Target returns the resolution window for a priority.
func (p *Policies) Target(priority domain.TicketPriority) time.Duration {
	if d, ok := p.targets[priority]; ok {
		return d
	}
	return p.fallback
}

// DueDate computes when a ticket opened at start falls due.
func (p *Policies) DueDate(priority domain.TicketPriority, start time.Time) time.Time {
	return start.UTC().Add(p.Target(priority))
}
