package anchorgen

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ManifestVersion is the format version of build manifests.
const ManifestVersion = 1

// Manifest records what a build produced so unchanged files can be skipped.
type Manifest struct {
	Version   int        `json:"version"`
	Compiler  string     `json:"compiler"`
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact describes the outputs of one source file.
type Artifact struct {
	Source     string `json:"source"`
	Output     string `json:"output"`
	IDL        string `json:"idl,omitempty"`
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
	Compiler   string `json:"compiler"`
	Options    string `json:"options"`
	SourceHash string `json:"source_hash"`
	OutputHash string `json:"output_hash"`
	IDLHash    string `json:"idl_hash,omitempty"`
}

// NewArtifact records the hashes of a file compiled with opts.
func NewArtifact(source, output, idlPath string, src []byte, opts Options, out *Output) Artifact {
	a := Artifact{
		Source:     source,
		Output:     output,
		Program:    out.Program,
		ProgramID:  out.ProgramID,
		Compiler:   CompilerID,
		Options:    opts.Fingerprint(),
		SourceHash: Keccak256Hex(src),
		OutputHash: Keccak256Hex([]byte(out.Rust)),
	}
	if out.IDL != nil && idlPath != "" {
		a.IDL = idlPath
		a.IDLHash = Keccak256Hex(out.IDL)
	}
	return a
}

// UpToDate reports whether compiling src with opts would reproduce the
// bytes currently on disk: the compiler and options must be unchanged and
// src, output and idl (nil when no IDL is kept) must match their hashes.
func (a Artifact) UpToDate(opts Options, src, output, idl []byte) bool {
	if a.Compiler != CompilerID || a.Options != opts.Fingerprint() {
		return false
	}
	if !strings.EqualFold(a.SourceHash, Keccak256Hex(src)) || !strings.EqualFold(a.OutputHash, Keccak256Hex(output)) {
		return false
	}
	if a.IDLHash == "" {
		return idl == nil
	}
	return idl != nil && strings.EqualFold(a.IDLHash, Keccak256Hex(idl))
}

// Lookup returns the artifact recorded for a source path.
func (m *Manifest) Lookup(source string) (Artifact, bool) {
	for _, a := range m.Artifacts {
		if a.Source == source {
			return a, true
		}
	}
	return Artifact{}, false
}

// Put replaces or adds the artifact for a.Source.
func (m *Manifest) Put(a Artifact) {
	for i := range m.Artifacts {
		if m.Artifacts[i].Source == a.Source {
			m.Artifacts[i] = a
			return
		}
	}
	m.Artifacts = append(m.Artifacts, a)
}

// EncodeManifest serializes m with artifacts sorted by source path.
func EncodeManifest(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("nil manifest")
	}
	out := *m
	if out.Version == 0 {
		out.Version = ManifestVersion
	}
	out.Compiler = CompilerID
	out.Artifacts = append([]Artifact(nil), m.Artifacts...)
	sort.Slice(out.Artifacts, func(i, j int) bool { return out.Artifacts[i].Source < out.Artifacts[j].Source })
	for _, a := range out.Artifacts {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeManifest parses and validates a manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: got=%d want=%d", m.Version, ManifestVersion)
	}
	for _, a := range m.Artifacts {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (a Artifact) validate() error {
	if strings.TrimSpace(a.Source) == "" {
		return fmt.Errorf("artifact source path is required")
	}
	if _, err := decodeHashHex(a.SourceHash); err != nil {
		return fmt.Errorf("invalid source hash for %s: %w", a.Source, err)
	}
	if _, err := decodeHashHex(a.OutputHash); err != nil {
		return fmt.Errorf("invalid output hash for %s: %w", a.Source, err)
	}
	if a.IDLHash != "" {
		if _, err := decodeHashHex(a.IDLHash); err != nil {
			return fmt.Errorf("invalid idl hash for %s: %w", a.Source, err)
		}
	}
	return nil
}

// Keccak256Hex is the 0x-prefixed legacy Keccak-256 digest of data.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func decodeHashHex(v string) ([]byte, error) {
	s := strings.TrimSpace(strings.ToLower(v))
	if s == "" {
		return nil, fmt.Errorf("empty hash")
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("hash must start with 0x")
	}
	raw := s[2:]
	if len(raw) != 64 {
		return nil, fmt.Errorf("hash must be 32 bytes")
	}
	return hex.DecodeString(raw)
}
