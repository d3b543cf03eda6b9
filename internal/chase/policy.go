package chase

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

// Policy maps escalation levels to recipient chains. Teams override the
// defaults with a YAML policy file.
type Policy struct {
	Recipients map[string]string `yaml:"recipients"`
}

// DefaultPolicy routes each level to its role inbox.
func DefaultPolicy() *Policy {
	return &Policy{
		Recipients: map[string]string{
			"reporter":        "reporter",
			"project_manager": "project-manager",
			"executive":       "executive",
		},
	}
}

// LoadPolicy reads an escalation policy from a YAML file. Levels missing
// from the file keep their defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "chase: read policy %s", path)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "chase: parse policy %s", path)
	}

	merged := DefaultPolicy()
	for level, recipient := range p.Recipients {
		merged.Recipients[level] = recipient
	}
	return merged, nil
}

// Recipient returns the configured recipient for an escalation level.
func (p *Policy) Recipient(level model.EscalationLevel) string {
	if r, ok := p.Recipients[level.String()]; ok && r != "" {
		return r
	}
	return level.String()
}
