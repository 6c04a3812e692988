package daemon

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/novanet/novanet/section"
	"github.com/novanet/novanet/xorname"
)

const identityFileName = "identity.toml"

type identityFile struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
}

// LoadOrCreateIdentity reads this node's (name, address) from dataDir, or
// picks a fresh random name and persists it if none exists yet. Grounded
// on the teacher's key.FileStore (one persisted identity per config
// folder, generated once and reused across restarts), generalised from a
// long-term asymmetric keypair to novanet's bare xorname.Name identity,
// since section membership authenticates via the section's threshold
// key rather than a per-node keypair (spec §3).
func LoadOrCreateIdentity(dataDir, address string) (section.Peer, error) {
	path := filepath.Join(dataDir, identityFileName)

	var f identityFile
	if _, err := toml.DecodeFile(path, &f); err == nil {
		raw, err := hex.DecodeString(f.Name)
		if err != nil || len(raw) != xorname.Len {
			return section.Peer{}, fmt.Errorf("daemon: corrupt identity file %s", path)
		}
		var name xorname.Name
		copy(name[:], raw)
		return section.Peer{Name: name, Address: f.Address}, nil
	}

	name := xorname.Random()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return section.Peer{}, fmt.Errorf("daemon: creating data dir: %w", err)
	}
	fh, err := os.Create(path)
	if err != nil {
		return section.Peer{}, fmt.Errorf("daemon: creating identity file: %w", err)
	}
	defer fh.Close()
	if err := toml.NewEncoder(fh).Encode(identityFile{Name: name.String(), Address: address}); err != nil {
		return section.Peer{}, fmt.Errorf("daemon: writing identity file: %w", err)
	}
	return section.Peer{Name: name, Address: address}, nil
}
