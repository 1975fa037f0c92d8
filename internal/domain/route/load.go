package route

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/auth"
)

// fileSpec is the on-disk shape of a route table.
type fileSpec struct {
	Scopes []policySpec `yaml:"scopes"`
	Routes []policySpec `yaml:"routes"`
}

type policySpec struct {
	Prefix string   `yaml:"prefix"`
	Path   string   `yaml:"path"`
	View   string   `yaml:"view"`
	Shell  string   `yaml:"shell"`
	Auth   bool     `yaml:"auth"`
	Roles  []string `yaml:"roles"`
}

func (p policySpec) policy() (access.Policy, error) {
	out := access.Policy{RequiresAuth: p.Auth}
	if p.Roles == nil {
		return out, nil
	}
	roles := make([]auth.Role, 0, len(p.Roles))
	for _, raw := range p.Roles {
		r, err := auth.ParseRole(raw)
		if err != nil {
			return access.Policy{}, err
		}
		roles = append(roles, r)
	}
	out.Roles = roles
	out.RequiresAuth = true
	return out, nil
}

// Parse builds a table from a YAML document.
func Parse(data []byte) (*Table, error) {
	var doc fileSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode route table: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, errors.New("route table declares no routes")
	}

	scopes := make([]Scope, 0, len(doc.Scopes))
	for i, s := range doc.Scopes {
		pol, err := s.policy()
		if err != nil {
			return nil, fmt.Errorf("scope %d (%s): %w", i, s.Prefix, err)
		}
		scopes = append(scopes, Scope{Prefix: s.Prefix, Shell: Shell(s.Shell), Policy: pol})
	}

	entries := make([]Entry, 0, len(doc.Routes))
	for i, r := range doc.Routes {
		pol, err := r.policy()
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, r.Path, err)
		}
		entries = append(entries, Entry{Pattern: r.Path, View: r.View, Shell: Shell(r.Shell), Policy: pol})
	}
	return Build(scopes, entries)
}

// LoadFile reads and parses a route table file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	return Parse(data)
}
