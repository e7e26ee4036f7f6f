package pooling

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// ManifestFile is written into the output directory of every complete run.
const ManifestFile = "pools.yaml"

// Manifest records the pooling design of a run: which samples feed which
// pool and how many reads went where.
type Manifest struct {
	RunID   string         `yaml:"run_id"`
	Seed    int64          `yaml:"seed"`
	Format  records.Format `yaml:"format"`
	Samples int            `yaml:"samples"`
	Side    int            `yaml:"side"`
	Pools   []PoolEntry    `yaml:"pools"`
	Inputs  []SampleEntry  `yaml:"inputs"`
}

type PoolEntry struct {
	Number   int      `yaml:"number"`
	File     string   `yaml:"file"`
	Category string   `yaml:"category"`
	Index    int      `yaml:"index"`
	Samples  []string `yaml:"samples"`
	Records  int64    `yaml:"records"`
}

type SampleEntry struct {
	Name    string   `yaml:"name"`
	File    string   `yaml:"file"`
	Row     int      `yaml:"row"`
	Col     int      `yaml:"col"`
	Pools   [3]int   `yaml:"pools,flow"`
	Records [3]int64 `yaml:"records,flow"`
}

func newManifest(runID string, seed int64, format records.Format, topo *Topology, ps *PoolSet, stats []SampleStats) *Manifest {
	m := &Manifest{
		RunID:   runID,
		Seed:    seed,
		Format:  format,
		Samples: topo.Samples(),
		Side:    topo.Side(),
	}
	members := make([][]string, topo.NumPools())
	for _, st := range stats {
		entry := SampleEntry{
			Name:    st.Sample.Name,
			File:    st.Sample.File,
			Row:     st.Sample.Coordinate.Row,
			Col:     st.Sample.Coordinate.Col,
			Records: st.Counts,
		}
		for k, id := range st.Targets {
			entry.Pools[k] = id.Number()
			members[id] = append(members[id], st.Sample.Name)
		}
		m.Inputs = append(m.Inputs, entry)
	}
	for _, p := range ps.Pools() {
		m.Pools = append(m.Pools, PoolEntry{
			Number:   p.ID.Number(),
			File:     ps.File(p.ID),
			Category: p.Category.String(),
			Index:    p.Index,
			Samples:  members[p.ID],
			Records:  ps.Written(p.ID),
		})
	}
	return m
}

// WriteFile saves the manifest as YAML.
func (m *Manifest) WriteFile(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
