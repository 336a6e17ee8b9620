package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Snapshot is the fully-decoded, typed view of one configuration document
// (§6 "Config file format"): three top-level arrays, tls / listeners /
// clusters, each parsed into its record type with malformed records
// skipped rather than failing the whole load.
type Snapshot struct {
	TLS       []TLSConfig
	Listeners []Listener
	Clusters  []Cluster
}

// Load reads and parses a configuration document from path. Hierarchical
// decode deliberately goes through yaml.v3 into interface{}, not through
// viper: viper flattens nested keys into a dot-delimited map, which loses
// the array-of-records shape this document needs (see DESIGN.md).
func Load(path string, log *logrus.Logger) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	root, ok := asMap(doc)
	if !ok {
		return nil, fmt.Errorf("config %s: root is not a document", path)
	}

	snap := &Snapshot{}
	seenTLS := map[string]bool{}
	if tlsList, ok := asSlice(field(root, keyTLS)); ok {
		for _, t := range tlsList {
			cfg, ok := ParseTLSConfig(t, log)
			if !ok {
				continue
			}
			if seenTLS[cfg.Name] {
				log.Debugf("duplicate tls config name %q, keeping first", cfg.Name)
				continue
			}
			seenTLS[cfg.Name] = true
			snap.TLS = append(snap.TLS, cfg)
		}
	}

	seenListeners := map[string]bool{}
	if listeners, ok := asSlice(field(root, keyListeners)); ok {
		for _, l := range listeners {
			ln, ok := ParseListener(l, log)
			if !ok {
				continue
			}
			if seenListeners[ln.Name] {
				log.Debugf("duplicate listener name %q, keeping first", ln.Name)
				continue
			}
			seenListeners[ln.Name] = true
			snap.Listeners = append(snap.Listeners, ln)
		}
	}

	seenClusters := map[string]bool{}
	if clusters, ok := asSlice(field(root, keyClusters)); ok {
		for _, c := range clusters {
			cl, ok := ParseCluster(c, log)
			if !ok {
				continue
			}
			if seenClusters[cl.Name] {
				log.Debugf("duplicate cluster name %q, keeping first", cl.Name)
				continue
			}
			seenClusters[cl.Name] = true
			snap.Clusters = append(snap.Clusters, cl)
		}
	}

	return snap, nil
}

// FindTLS resolves a TLS config by name from a snapshot, serving the lookup
// the config source performs on demand (§2, §4.4 step 1).
func (s *Snapshot) FindTLS(name string) (TLSConfig, bool) {
	for _, t := range s.TLS {
		if t.Name == name {
			return t, true
		}
	}
	return TLSConfig{}, false
}
