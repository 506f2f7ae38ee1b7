package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelmgr/internal/common/fsutil"
	"modelmgr/pkg/types"
)

// LoadCandidatesDir scans a directory for candidate documents
// (*.yaml|*.yml|*.json|*.toml) and returns them in filename order.
func LoadCandidatesDir(dir string) ([]types.ModelCandidate, error) {
	var out []types.ModelCandidate
	err := scanDir(dir, func(b []byte, ext string) error {
		var c types.ModelCandidate
		if err := unmarshalDoc(b, ext, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadRolesDir scans a directory for role profile documents.
func LoadRolesDir(dir string) ([]types.RoleProfile, error) {
	var out []types.RoleProfile
	err := scanDir(dir, func(b []byte, ext string) error {
		var p types.RoleProfile
		if err := unmarshalDoc(b, ext, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanDir(dir string, each func(b []byte, ext string) error) error {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".yaml", ".yml", ".json", ".toml":
		default:
			continue
		}
		b, err := os.ReadFile(filepath.Join(abs, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if err := each(b, ext); err != nil {
			return fmt.Errorf("parse %s: %w", e.Name(), err)
		}
	}
	return nil
}

func unmarshalDoc(b []byte, ext string, v any) error {
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	}
	return fmt.Errorf("unsupported document extension: %s", ext)
}
