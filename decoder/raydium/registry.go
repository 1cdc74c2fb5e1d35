package raydium

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Program IDs of the Raydium swap programs this package decodes.
const (
	ProgramIDV4   = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	ProgramIDCLMM = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	ProgramIDCPMM = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
)

// Registry maps program IDs to the layout rules their swap instructions
// decode under. Unknown programs are skipped by callers, never errors.
type Registry struct {
	programs map[string][]LayoutRule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string][]LayoutRule)}
}

// DefaultRegistry registers the production Raydium programs: the V4 AMM,
// the concentrated-liquidity program, and the constant-product successor.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProgramIDV4, ammRules)
	clmm := append(concentratedRules(discConcentratedSwap), concentratedRules(discConcentratedSwapV2)...)
	r.Register(ProgramIDCLMM, clmm)
	r.Register(ProgramIDCPMM, cpRules)
	return r
}

// Register adds rules for a program, replacing any existing entry.
func (r *Registry) Register(programID string, rules []LayoutRule) {
	r.programs[programID] = rules
}

// Registered reports whether programID has any rules.
func (r *Registry) Registered(programID string) bool {
	_, ok := r.programs[programID]
	return ok
}

// Lookup selects the rule for an instruction: the discriminator must match
// and, among matching rules, the one with the largest MinLen the payload
// still satisfies wins. The second return is false when the program is
// unknown; ErrUnknownDiscriminator and ErrPayloadTooShort distinguish the
// failure modes for known programs.
func (r *Registry) Lookup(programID string, payload []byte) (*LayoutRule, bool, error) {
	rules, ok := r.programs[programID]
	if !ok {
		return nil, false, nil
	}
	if len(payload) == 0 {
		return nil, true, ErrPayloadTooShort
	}
	disc := payload[0]
	var best *LayoutRule
	seen := false
	for i := range rules {
		if rules[i].Discriminator != disc {
			continue
		}
		seen = true
		if len(payload) < rules[i].MinLen {
			continue
		}
		if best == nil || rules[i].MinLen > best.MinLen {
			best = &rules[i]
		}
	}
	if best == nil {
		if seen {
			return nil, true, ErrPayloadTooShort
		}
		return nil, true, ErrUnknownDiscriminator
	}
	return best, true, nil
}

type registryFile struct {
	Programs []struct {
		ProgramID string `yaml:"program_id"`
		Family    string `yaml:"family"`
		Rules     []struct {
			Discriminator byte   `yaml:"discriminator"`
			MinLen        int    `yaml:"min_len"`
			AmountOffset  int    `yaml:"amount_offset"`
			LimitOffset   int    `yaml:"limit_offset"`
			LimitSide     string `yaml:"limit_side"`
			FlagOffset    *int   `yaml:"flag_offset"`
		} `yaml:"rules"`
	} `yaml:"programs"`
}

// LoadOverrides merges program rules from a YAML file into the registry,
// letting deployments pick up forked programs without a rebuild. Families
// are referenced by name; only the built-in account layouts exist.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read registry overrides: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse registry overrides: %w", err)
	}
	for _, p := range file.Programs {
		var family *Family
		switch p.Family {
		case "amm":
			family = familyAmm
		case "concentrated":
			family = familyConcentrated
		default:
			return fmt.Errorf("registry overrides: unknown family %q for program %s", p.Family, p.ProgramID)
		}
		rules := make([]LayoutRule, 0, len(p.Rules))
		for _, rule := range p.Rules {
			side := LimitSide(rule.LimitSide)
			if side != LimitMintIn && side != LimitMintOut {
				return fmt.Errorf("registry overrides: bad limit side %q for program %s", rule.LimitSide, p.ProgramID)
			}
			flag := -1
			if rule.FlagOffset != nil {
				flag = *rule.FlagOffset
			}
			rules = append(rules, LayoutRule{
				Discriminator: rule.Discriminator,
				MinLen:        rule.MinLen,
				AmountOffset:  rule.AmountOffset,
				LimitOffset:   rule.LimitOffset,
				LimitSide:     side,
				FlagOffset:    flag,
				Family:        family,
			})
		}
		r.Register(p.ProgramID, rules)
	}
	return nil
}
