package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Capability is a single permission granted by a subscription plan.
type Capability uint16

const (
	CapManageEvents Capability = 1 << iota
	CapManageNews
	CapManageMedia
	CapManageCertificates
	CapManageMembers
	CapFinancialReports
)

var capabilityNames = map[Capability]string{
	CapManageEvents:       "manage_events",
	CapManageNews:         "manage_news",
	CapManageMedia:        "manage_media",
	CapManageCertificates: "manage_certificates",
	CapManageMembers:      "manage_members",
	CapFinancialReports:   "financial_reports",
}

var ErrUnknownCapability = errors.New("unknown_capability")

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", uint16(c))
}

// ParseCapability resolves a persisted capability name.
func ParseCapability(name string) (Capability, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for capability, known := range capabilityNames {
		if known == name {
			return capability, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// Capabilities is a set of plan capabilities stored as a JSON array of names.
type Capabilities uint16

func NewCapabilities(caps ...Capability) Capabilities {
	var set Capabilities
	for _, c := range caps {
		set |= Capabilities(c)
	}
	return set
}

func (s Capabilities) Has(c Capability) bool {
	return s&Capabilities(c) != 0
}

func (s Capabilities) With(c Capability) Capabilities {
	return s | Capabilities(c)
}

// Names returns the sorted capability names in the set.
func (s Capabilities) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for capability, name := range capabilityNames {
		if s.Has(capability) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func ParseCapabilities(names []string) (Capabilities, error) {
	var set Capabilities
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}
		set = set.With(c)
	}
	return set, nil
}

func (s Capabilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts either an array of names or the legacy object form
// {"manage_events": true, ...}.
func (s *Capabilities) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*s = 0
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var flags map[string]bool
		if err := json.Unmarshal(data, &flags); err != nil {
			return err
		}
		names := make([]string, 0, len(flags))
		for name, enabled := range flags {
			if enabled {
				names = append(names, name)
			}
		}
		parsed, err := ParseCapabilities(names)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseCapabilities(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Capabilities) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Capabilities) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = 0
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported capabilities column type %T", value)
	}
}
