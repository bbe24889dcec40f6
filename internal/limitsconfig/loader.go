package limitsconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roeimichael/VarProject/pkg/config"
)

// Load reads a YAML profile on top of base and returns it with the raw bytes.
// Keys missing from the file keep the base value. Unknown keys fail the load.
func Load(path string, base *Profile) (*Profile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	p, err := Parse(data, base)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return p, data, nil
}

// Parse decodes YAML bytes on top of base and validates the result
func Parse(data []byte, base *Profile) (*Profile, error) {
	var p Profile
	if base != nil {
		p = *base
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // typos fail instead of silently keeping the default
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Resolve returns the active profile: the YAML file named by
// RISK_LIMITS_FILE over the environment values, or the environment alone
func Resolve(c config.LimitsConfig) (*Profile, error) {
	base := FromConfig(c)
	if c.ProfilePath == "" {
		if err := Validate(base); err != nil {
			return nil, err
		}
		return base, nil
	}

	p, _, err := Load(c.ProfilePath, base)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Hash generates a SHA256 hash of the profile (canonical JSON)
func Hash(p *Profile) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Marshal renders the profile as YAML
func Marshal(p *Profile) ([]byte, error) {
	return yaml.Marshal(p)
}
