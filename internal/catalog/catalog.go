// Package catalog holds the fest's events and the fee and team-size policy of
// every sub-event. The catalog is declared in HCL; an embedded default
// (catalog.hcl) is used unless a file is configured.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

//go:embed catalog.hcl
var defaultCatalog []byte

// Policy is the team-size policy of a sub-event.
type Policy string

const (
	// PolicySolo: one participant, flat fee.
	PolicySolo Policy = "solo"
	// PolicyFixed: a team within [MinSize,MaxSize], flat fee per team.
	PolicyFixed Policy = "fixed"
	// PolicyVariable: solo or team within [MinSize,MaxSize], per-head fee.
	PolicyVariable Policy = "variable"
)

type SubEvent struct {
	Name       string `json:"name"`
	Policy     Policy `json:"teamPolicy"`
	MinSize    int    `json:"minTeamSize"`
	MaxSize    int    `json:"maxTeamSize"`
	Fee        int64  `json:"fee,omitempty"`
	PerHeadFee int64  `json:"perHeadFee,omitempty"`
}

type Event struct {
	Name      string     `json:"name"`
	SubEvents []SubEvent `json:"subEvents"`
}

type Catalog struct {
	Events []Event `json:"events"`
}

type hclFile struct {
	Events []hclEvent `hcl:"event,block"`
}

type hclEvent struct {
	Name      string        `hcl:"name,label"`
	SubEvents []hclSubEvent `hcl:"sub_event,block"`
}

type hclSubEvent struct {
	Name       string `hcl:"name,label"`
	Team       string `hcl:"team"`
	MinSize    *int   `hcl:"min_size,optional"`
	MaxSize    *int   `hcl:"max_size,optional"`
	Fee        *int64 `hcl:"fee,optional"`
	PerHeadFee *int64 `hcl:"per_head_fee,optional"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse("catalog.hcl", defaultCatalog)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(path, src)
}

func Parse(filename string, src []byte) (*Catalog, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("catalog: parse %s: %w", filename, diags)
	}
	var raw hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("catalog: decode %s: %w", filename, diags)
	}

	c := &Catalog{Events: make([]Event, 0, len(raw.Events))}
	seen := map[string]bool{}
	for _, re := range raw.Events {
		key := normalize(re.Name)
		if seen[key] {
			return nil, fmt.Errorf("catalog: duplicate event %q", re.Name)
		}
		seen[key] = true

		ev := Event{Name: re.Name}
		subSeen := map[string]bool{}
		for _, rs := range re.SubEvents {
			se, err := rs.build()
			if err != nil {
				return nil, fmt.Errorf("catalog: %s / %s: %w", re.Name, rs.Name, err)
			}
			if subSeen[normalize(se.Name)] {
				return nil, fmt.Errorf("catalog: %s: duplicate sub-event %q", re.Name, rs.Name)
			}
			subSeen[normalize(se.Name)] = true
			ev.SubEvents = append(ev.SubEvents, se)
		}
		c.Events = append(c.Events, ev)
	}
	return c, nil
}

func (r hclSubEvent) build() (SubEvent, error) {
	se := SubEvent{Name: r.Name, Policy: Policy(strings.ToLower(strings.TrimSpace(r.Team)))}
	if r.Fee != nil {
		se.Fee = *r.Fee
	}
	if r.PerHeadFee != nil {
		se.PerHeadFee = *r.PerHeadFee
	}
	if se.Fee < 0 || se.PerHeadFee < 0 {
		return se, fmt.Errorf("negative fee")
	}

	switch se.Policy {
	case PolicySolo:
		se.MinSize, se.MaxSize = 1, 1
		if r.PerHeadFee != nil {
			return se, fmt.Errorf("per_head_fee is only valid for variable teams")
		}
		return se, nil
	case PolicyFixed:
		if r.PerHeadFee != nil {
			return se, fmt.Errorf("per_head_fee is only valid for variable teams")
		}
	case PolicyVariable:
		if r.Fee != nil {
			return se, fmt.Errorf("fee is not valid for variable teams, use per_head_fee")
		}
	default:
		return se, fmt.Errorf("unknown team policy %q", r.Team)
	}

	if r.MinSize == nil || r.MaxSize == nil {
		return se, fmt.Errorf("min_size and max_size are required for %s teams", se.Policy)
	}
	se.MinSize, se.MaxSize = *r.MinSize, *r.MaxSize
	if se.MinSize < 1 || se.MinSize > se.MaxSize {
		return se, fmt.Errorf("invalid team size range %d..%d", se.MinSize, se.MaxSize)
	}
	return se, nil
}

// Lookup finds a sub-event by event and sub-event name, ignoring case and
// surrounding whitespace.
func (c *Catalog) Lookup(event, subEvent string) (Event, SubEvent, bool) {
	for _, ev := range c.Events {
		if normalize(ev.Name) != normalize(event) {
			continue
		}
		for _, se := range ev.SubEvents {
			if normalize(se.Name) == normalize(subEvent) {
				return ev, se, true
			}
		}
		return ev, SubEvent{}, false
	}
	return Event{}, SubEvent{}, false
}

// IsTeam reports whether a registration of the given head count is a team
// entry for this sub-event.
func (s SubEvent) IsTeam(headCount int) bool {
	switch s.Policy {
	case PolicyFixed:
		return true
	case PolicyVariable:
		return headCount > 1
	default:
		return false
	}
}

// RequiresTeamName reports whether a team name must be supplied.
func (s SubEvent) RequiresTeamName(headCount int) bool {
	return s.IsTeam(headCount)
}

// HeadCount resolves the number of participants for a requested team size.
// Zero means "not specified" and resolves to the minimum.
func (s SubEvent) HeadCount(requested int) (int, error) {
	if s.Policy == PolicySolo {
		if requested > 1 {
			return 0, fmt.Errorf("%s is a solo event", s.Name)
		}
		return 1, nil
	}
	if requested == 0 {
		requested = s.MinSize
	}
	if requested < s.MinSize || requested > s.MaxSize {
		return 0, fmt.Errorf("team size must be between %d and %d", s.MinSize, s.MaxSize)
	}
	return requested, nil
}

// EntryFee computes the fee in whole rupees for headCount participants.
func (s SubEvent) EntryFee(headCount int) (int64, error) {
	n, err := s.HeadCount(headCount)
	if err != nil {
		return 0, err
	}
	if s.Policy == PolicyVariable {
		return s.PerHeadFee * int64(n), nil
	}
	return s.Fee, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
