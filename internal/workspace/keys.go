package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/dsl/model"
	"github.com/tos-network/anchorgen/dsl/translate"
)

// ProgramIDFromKeypair reads a Solana CLI keypair file (a JSON array of the
// 64 secret key bytes) and returns its public key.
func ProgramIDFromKeypair(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read keypair %s", path)
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return "", errors.Wrapf(err, "parse keypair %s", path)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return "", errors.Errorf("parse keypair %s: byte value %d out of range", path, v)
		}
		raw = append(raw, byte(v))
	}
	acc, err := types.AccountFromBytes(raw)
	if err != nil {
		return "", errors.Wrapf(err, "keypair %s", path)
	}
	return acc.PublicKey.ToBase58(), nil
}

var programIDLiteral = regexp.MustCompile(`(PROGRAM_ID\s*=\s*new\s+Pubkey\(\s*)(["'])([^"']*)(["'])`)

// ReplaceProgramID rewrites the PROGRAM_ID literal of a DSL source.
func ReplaceProgramID(src []byte, id string) ([]byte, error) {
	if err := model.ValidateProgramID(id); err != nil {
		return nil, err
	}
	all := programIDLiteral.FindAllSubmatchIndex(src, -1)
	switch len(all) {
	case 0:
		return nil, errors.New("no PROGRAM_ID = new Pubkey(\"...\") literal found")
	case 1:
	default:
		return nil, errors.New("more than one PROGRAM_ID literal found")
	}
	loc := all[0]
	out := make([]byte, 0, len(src)+len(id))
	out = append(out, src[:loc[6]]...)
	out = append(out, id...)
	out = append(out, src[loc[7]:]...)
	return out, nil
}

// KeySync reports one program whose id was checked against its keypair.
type KeySync struct {
	Source  string
	Program string
	Keypair string
	OldID   string
	NewID   string
}

// Changed reports whether the source had to be rewritten.
func (k KeySync) Changed() bool { return k.OldID != k.NewID }

// SyncKeys aligns each program's PROGRAM_ID and its Anchor.toml entry with
// the deploy keypair target/deploy/<module>-keypair.json. Programs without
// a keypair are left alone.
func (d *Driver) SyncKeys() ([]KeySync, error) {
	paths, err := d.Discover()
	if err != nil {
		return nil, err
	}
	ws := d.cfg.WorkspaceConf
	var out []KeySync
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		unit, err := anchorgen.ExtractProgram(src, p, d.options())
		if err != nil {
			d.log.Warn("skipping program that does not compile", zap.String("source", p), zap.Error(err))
			continue
		}
		module := translate.SnakeCase(unit.Name)
		keypair := filepath.Join(d.path(ws.DeployDir), module+"-keypair.json")
		if _, err := os.Stat(keypair); os.IsNotExist(err) {
			d.log.Info("no deploy keypair", zap.String("program", module), zap.String("keypair", keypair))
			continue
		}
		id, err := ProgramIDFromKeypair(keypair)
		if err != nil {
			return nil, err
		}
		ks := KeySync{Source: p, Program: module, Keypair: keypair, OldID: unit.ProgramID, NewID: id}
		if ks.Changed() {
			updated, err := ReplaceProgramID(src, id)
			if err != nil {
				return nil, errors.Wrapf(err, "rewrite %s", p)
			}
			if err := writeFile(p, updated); err != nil {
				return nil, err
			}
			d.log.Info("program id updated", zap.String("source", p), zap.String("old", ks.OldID), zap.String("new", id))
		}
		if err := SetProgramID(d.path(ws.AnchorToml), ws.Cluster, module, id); err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	return out, nil
}
