package pack

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
)

// ManifestName is the archive entry holding the manifest.
const ManifestName = "manifest.json"

const manifestVersion = 1

// Manifest describes the test cases in a data pack.
type Manifest struct {
	Version  int            `json:"version"`
	Kind     string         `json:"kind"`
	Verifier bool           `json:"verifier"`
	Tests    []ManifestTest `json:"tests"`
	Hash     ManifestHash   `json:"hash"`
}

// ManifestTest describes one test case. Paths are slash separated and
// relative to the pack root.
type ManifestTest struct {
	TestID     string `json:"testId"`
	InputPath  string `json:"inputPath"`
	InputHash  string `json:"inputHash"`
	AnswerPath string `json:"answerPath,omitempty"`
	AnswerHash string `json:"answerHash,omitempty"`
}

// ManifestHash stores bundle hashes.
type ManifestHash struct {
	// ManifestHash covers the manifest encoded with this field empty.
	ManifestHash string `json:"manifestHash"`
}

func (m *Manifest) seal() ([]byte, error) {
	m.Hash.ManifestHash = ""
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	m.Hash.ManifestHash = hex.EncodeToString(sum[:])
	return json.MarshalIndent(m, "", "  ")
}

func (m Manifest) verifyHash() bool {
	want := m.Hash.ManifestHash
	m.Hash.ManifestHash = ""
	body, err := json.Marshal(m)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]) == want
}

// LoadManifest parses manifest.json.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
