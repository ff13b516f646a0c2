// Package config persists subsystem configuration as versioned TOML
// files. Each persisted struct carries its own layout revision; a
// stored file whose revision does not match the compiled-in default is
// replaced by the default rather than partially decoded.
package config

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
)

// Revisioned is a persisted configuration struct with a layout
// revision.
type Revisioned interface {
	ConfigRev() int
}

// Load reads the file at path into out. A missing file, a revision
// mismatch or undecodable content resets out to def and rewrites the
// file. An unreadable or unwritable store is a hard error: the caller
// must not start the owning subsystem with undefined parameters.
func Load(path string, def, out Revisioned) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		glog.Infof("%s missing, writing defaults", path)
		return reset(path, def, out)
	}
	if err != nil {
		return err
	}
	if _, derr := toml.Decode(string(data), out); derr != nil {
		glog.Warningf("%s undecodable (%v), resetting to defaults", path, derr)
		return reset(path, def, out)
	}
	if out.ConfigRev() != def.ConfigRev() {
		glog.Warningf("%s revision %d, want %d, resetting to defaults",
			path, out.ConfigRev(), def.ConfigRev())
		return reset(path, def, out)
	}
	return nil
}

// Save writes cfg to path.
func Save(path string, cfg Revisioned) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func reset(path string, def, out Revisioned) error {
	if err := Save(path, def); err != nil {
		return err
	}
	// Round-trip the default through TOML to copy it into out without
	// knowing its concrete type.
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(def); err != nil {
		return err
	}
	_, err := toml.Decode(buf.String(), out)
	return err
}
