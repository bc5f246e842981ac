// Package workspace drives compilation of a directory of DSL programs: file
// discovery, parallel compilation, output writing, the build manifest and
// program id synchronisation.
package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/internal/config"
)

// ManifestFile is written into the output directory after every build.
const ManifestFile = "build-manifest.json"

// Result is the outcome of one source file. Err holds the compile
// diagnostic; I/O failures abort the whole build instead.
type Result struct {
	Source  string
	Output  string
	IDL     string
	Program string
	Skipped bool
	Err     error
}

type Driver struct {
	cfg *config.Config
	log *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{cfg: cfg, log: log}
}

func (d *Driver) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.cfg.WorkspaceConf.Root, p)
}

// Discover lists the DSL sources under the programs directory, sorted.
// Declaration files (*.d.ts) are skipped.
func (d *Driver) Discover() ([]string, error) {
	dir := d.path(d.cfg.WorkspaceConf.ProgramsDir)
	var out []string
	err := filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if p != dir && strings.HasPrefix(e.Name(), ".") || e.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".ts") && !strings.HasSuffix(p, ".d.ts") {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", dir)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Driver) options() anchorgen.Options {
	return anchorgen.Options{
		StringMaxLen: d.cfg.CompilerConf.StringMaxLen,
		EmitIDL:      d.cfg.CompilerConf.EmitIDL,
	}
}

func stem(p string) string {
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}

func (d *Driver) manifestPath() string {
	return filepath.Join(d.path(d.cfg.WorkspaceConf.OutputDir), ManifestFile)
}

func (d *Driver) loadManifest() (*anchorgen.Manifest, error) {
	data, err := os.ReadFile(d.manifestPath())
	if os.IsNotExist(err) {
		return &anchorgen.Manifest{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read build manifest")
	}
	m, err := anchorgen.DecodeManifest(data)
	if err != nil {
		d.log.Warn("discarding unreadable build manifest", zap.Error(err))
		return &anchorgen.Manifest{}, nil
	}
	return m, nil
}

// Build compiles every discovered source. Unless force is set, files whose
// source and output still match the manifest are skipped.
func (d *Driver) Build(ctx context.Context, force bool) ([]Result, error) {
	paths, err := d.Discover()
	if err != nil {
		return nil, err
	}
	return d.CompileFiles(ctx, paths, force)
}

// CompileFiles compiles paths concurrently and returns results in the
// order of paths.
func (d *Driver) CompileFiles(ctx context.Context, paths []string, force bool) ([]Result, error) {
	manifest, err := d.loadManifest()
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(paths))
	artifacts := make([]*anchorgen.Artifact, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.WorkspaceConf.Parallelism)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, art, err := d.compileOne(p, manifest, force)
			if err != nil {
				return err
			}
			results[i], artifacts[i] = res, art
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, art := range artifacts {
		if art != nil {
			manifest.Put(*art)
		}
	}
	if err := d.saveManifest(manifest); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Driver) compileOne(p string, manifest *anchorgen.Manifest, force bool) (Result, *anchorgen.Artifact, error) {
	src, err := os.ReadFile(p)
	if err != nil {
		return Result{}, nil, errors.Wrapf(err, "read %s", p)
	}
	res := Result{
		Source: p,
		Output: filepath.Join(d.path(d.cfg.WorkspaceConf.OutputDir), stem(p)+".rs"),
	}
	if d.cfg.CompilerConf.EmitIDL {
		res.IDL = filepath.Join(d.path(d.cfg.WorkspaceConf.IDLDir), stem(p)+".json")
	}

	opts := d.options()
	if !force {
		if prev, ok := manifest.Lookup(p); ok && prev.IDL == res.IDL && d.upToDate(prev, opts, src, res) {
			res.Program, res.Skipped = prev.Program, true
			d.log.Debug("up to date", zap.String("source", p))
			return res, nil, nil
		}
	}

	out, err := anchorgen.CompileWithOptions(src, p, opts)
	if err != nil {
		res.Err = err
		d.log.Error("compile failed", zap.String("source", p), zap.Error(err))
		return res, nil, nil
	}
	res.Program = out.Program
	if err := writeFile(res.Output, []byte(out.Rust)); err != nil {
		return Result{}, nil, err
	}
	if out.IDL != nil {
		if err := writeFile(res.IDL, out.IDL); err != nil {
			return Result{}, nil, err
		}
	}
	d.log.Info("compiled", zap.String("source", p), zap.String("output", res.Output), zap.String("program", out.Program))
	art := anchorgen.NewArtifact(p, res.Output, res.IDL, src, opts, out)
	return res, &art, nil
}

// upToDate compares the recorded artifact with the files on disk.
func (d *Driver) upToDate(prev anchorgen.Artifact, opts anchorgen.Options, src []byte, res Result) bool {
	cur, err := os.ReadFile(res.Output)
	if err != nil {
		return false
	}
	var idl []byte
	if res.IDL != "" {
		if idl, err = os.ReadFile(res.IDL); err != nil {
			return false
		}
	}
	return prev.UpToDate(opts, src, cur, idl)
}

func (d *Driver) saveManifest(m *anchorgen.Manifest) error {
	data, err := anchorgen.EncodeManifest(m)
	if err != nil {
		return errors.Wrap(err, "encode build manifest")
	}
	return writeFile(d.manifestPath(), data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// Failed counts results that carry a compile diagnostic.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
