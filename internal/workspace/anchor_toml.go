package workspace

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// anchorToml is the part of Anchor.toml the driver reads.
type anchorToml struct {
	Programs map[string]map[string]string `toml:"programs"`
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return nil
	},
}

func decodeAnchorToml(data []byte) (*anchorToml, error) {
	var cfg anchorToml
	if err := tomlSettings.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProgramIDs returns the [programs.<cluster>] table of an Anchor.toml file.
func ProgramIDs(path, cluster string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	cfg, err := decodeAnchorToml(data)
	if err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return nil, errors.New(path + ", " + err.Error())
		}
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	ids := cfg.Programs[cluster]
	if ids == nil {
		ids = map[string]string{}
	}
	return ids, nil
}

// setProgramID rewrites one entry of [programs.<cluster>], adding the
// section or key when absent. Other lines are kept as written.
func setProgramID(text, cluster, name, id string) string {
	header := "[programs." + cluster + "]"
	entry := fmt.Sprintf("%s = %q", name, id)
	lines := strings.Split(text, "\n")

	start := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == header {
			start = i
			break
		}
	}
	if start < 0 {
		text = strings.TrimRight(text, "\n")
		if text != "" {
			text += "\n\n"
		}
		return text + header + "\n" + entry + "\n"
	}

	last := start
	for i := start + 1; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "[") {
			break
		}
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		last = i
		key, _, ok := strings.Cut(l, "=")
		if ok && strings.Trim(strings.TrimSpace(key), `"`) == name {
			lines[i] = entry
			return strings.Join(lines, "\n")
		}
	}
	out := append([]string{}, lines[:last+1]...)
	out = append(out, entry)
	out = append(out, lines[last+1:]...)
	return strings.Join(out, "\n")
}

// SetProgramID records id for name under [programs.<cluster>] in path,
// creating the file when it does not exist.
func SetProgramID(path, cluster, name, id string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "read %s", path)
	}
	updated := setProgramID(string(data), cluster, name, id)
	cfg, err := decodeAnchorToml([]byte(updated))
	if err != nil {
		return errors.Wrapf(err, "rewrite %s", path)
	}
	if got := cfg.Programs[cluster][name]; got != id {
		return errors.Errorf("rewrite %s: programs.%s.%s is %q after update", path, cluster, name, got)
	}
	return errors.Wrapf(os.WriteFile(path, []byte(updated), 0o644), "write %s", path)
}
