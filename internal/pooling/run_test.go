package pooling

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/config"
	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

func writeSampleBAM(t *testing.T, path, prefix string, n int) {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w, err := bam.NewWriter(f, h, 1)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		rec, err := sam.NewRecord(fmt.Sprintf("%s:%d", prefix, i), ref, nil, i, -1, 0, 60,
			[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)},
			[]byte("ACGT"), []byte{35, 35, 35, 35}, nil)
		require.NoError(t, err)
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
}

func writeSampleFASTQ(t *testing.T, path, prefix string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "@%s:%d\nACGTACGT\n+\nIIIIIIII\n", prefix, i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

// newRun lays out n sample files under a fresh temp dir and returns a
// config pointing at them. Sample i holds 50+i reads named "sample<i>:<j>".
func newRun(t *testing.T, format records.Format, n int) *config.Config {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.Mkdir(in, 0o755))
	for i := 0; i < n; i++ {
		prefix := fmt.Sprintf("sample%02d", i)
		switch format {
		case records.BAM:
			writeSampleBAM(t, filepath.Join(in, prefix+".bam"), prefix, 50+i)
		case records.FASTQ:
			writeSampleFASTQ(t, filepath.Join(in, prefix+".fastq"), prefix, 50+i)
		}
	}

	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.MappingFile = filepath.Join(root, config.DefaultMappingFile)
	cfg.Format = string(format)
	cfg.Samples = n
	cfg.Seed = 11
	cfg.CacheSize = 8
	return cfg
}

func readNames(t *testing.T, format records.Format, path string) []string {
	t.Helper()
	r, err := records.OpenReader(format, path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return names
		}
		require.NoError(t, err)
		switch rec := rec.(type) {
		case *sam.Record:
			names = append(names, rec.Name)
		case *fastx.Record:
			names = append(names, string(rec.ID))
		}
	}
}

func assertNoStaging(t *testing.T, cfg *config.Config) {
	t.Helper()
	matches, err := filepath.Glob(cfg.OutputDir + ".partial-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// checkPools verifies that every input read landed in exactly one pool and
// only in a pool its sample feeds.
func checkPools(t *testing.T, cfg *config.Config, m *Manifest) {
	t.Helper()
	format := records.Format(cfg.Format)

	feeds := make(map[string]map[int]bool) // sample prefix -> pool numbers
	for i, in := range m.Inputs {
		prefix := strings.TrimSuffix(in.File, filepath.Ext(in.File))
		feeds[prefix] = map[int]bool{in.Pools[0]: true, in.Pools[1]: true, in.Pools[2]: true}
		assert.Equal(t, int64(50+i), in.Records[0]+in.Records[1]+in.Records[2], in.File)
	}

	seen := make(map[string]bool)
	for _, p := range m.Pools {
		names := readNames(t, format, filepath.Join(cfg.OutputDir, p.File))
		assert.Equal(t, p.Records, int64(len(names)), p.File)
		for _, name := range names {
			require.False(t, seen[name], "read %s written twice", name)
			seen[name] = true
			prefix := name[:strings.IndexByte(name, ':')]
			assert.True(t, feeds[prefix][p.Number], "read %s in pool_%d", name, p.Number)
		}
	}

	total := 0
	for i := 0; i < cfg.Samples; i++ {
		total += 50 + i
	}
	assert.Len(t, seen, total)
}

func TestRunBAM(t *testing.T) {
	cfg := newRun(t, records.BAM, 9)

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	assertNoStaging(t, cfg)

	assert.Equal(t, int64(11), m.Seed)
	assert.Equal(t, 9, m.Samples)
	assert.Equal(t, 3, m.Side)
	require.Len(t, m.Pools, 9)
	require.Len(t, m.Inputs, 9)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"pool_1.bam", "pool_2.bam", "pool_3.bam",
		"pool_4.bam", "pool_5.bam", "pool_6.bam",
		"pool_7.bam", "pool_8.bam", "pool_9.bam",
		ManifestFile,
	}, files)

	for i, p := range m.Pools {
		assert.Equal(t, i+1, p.Number)
		assert.Len(t, p.Samples, 3, p.File)
	}
	// Ordinal 5 sits at (1, 1): pools 2, 5 and 7.
	assert.Equal(t, "S5.bam", m.Inputs[4].Name)
	assert.Equal(t, [3]int{2, 5, 7}, m.Inputs[4].Pools)

	checkPools(t, cfg, m)

	// Pools carry the first sample's header.
	tmpl, err := records.ReadTemplate(records.BAM, filepath.Join(cfg.OutputDir, "pool_4.bam"))
	require.NoError(t, err)
	require.Len(t, tmpl.(*sam.Header).Refs(), 1)
	assert.Equal(t, "chr1", tmpl.(*sam.Header).Refs()[0].Name())

	saved, err := ReadManifest(filepath.Join(cfg.OutputDir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, m, saved)

	mapping, err := os.ReadFile(cfg.MappingFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(mapping), "File Name,Sample Name\nsample00.bam,S1.bam\n"), string(mapping))
	assert.Equal(t, 10, strings.Count(string(mapping), "\n"))
}

func TestRunThreadsKeepPlacement(t *testing.T) {
	sequential := newRun(t, records.BAM, 16)
	m1, err := Run(context.Background(), sequential, nil)
	require.NoError(t, err)

	parallel := newRun(t, records.BAM, 16)
	parallel.Threads = 4
	m2, err := Run(context.Background(), parallel, nil)
	require.NoError(t, err)
	checkPools(t, parallel, m2)

	assert.Equal(t, m1.Inputs, m2.Inputs)
	require.Len(t, m2.Pools, 12)
	for i := range m1.Pools {
		assert.Equal(t, m1.Pools[i].Records, m2.Pools[i].Records, m1.Pools[i].File)
		assert.Equal(t, m1.Pools[i].Samples, m2.Pools[i].Samples, m1.Pools[i].File)
	}
}

func TestRunFASTQ(t *testing.T) {
	cfg := newRun(t, records.FASTQ, 4)

	m, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, m.Pools, 6)
	assert.Equal(t, "pool_1.fastq.gz", m.Pools[0].File)
	assert.Equal(t, "S1.fastq.gz", m.Inputs[0].Name)
	checkPools(t, cfg, m)
}

func TestRunFatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*testing.T, *config.Config)
		want   error
	}{
		{"not a square", func(_ *testing.T, c *config.Config) { c.Samples = 8 }, ErrInvalidTopology},
		{"too few files", func(t *testing.T, c *config.Config) {
			require.NoError(t, os.Remove(filepath.Join(c.InputDir, "sample03.bam")))
		}, ErrSampleCountMismatch},
		{"missing input", func(_ *testing.T, c *config.Config) { c.InputDir += "-gone" }, ErrMissingInputDirectory},
		{"output exists", func(t *testing.T, c *config.Config) {
			require.NoError(t, os.Mkdir(c.OutputDir, 0o755))
		}, ErrOutputAlreadyExists},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := newRun(t, records.BAM, 4)
			test.modify(t, cfg)
			_, statErr := os.Stat(cfg.OutputDir)

			m, err := Run(context.Background(), cfg, nil)
			assert.ErrorIs(t, err, test.want)
			assert.Nil(t, m)
			assertNoStaging(t, cfg)
			assert.NoFileExists(t, cfg.MappingFile)

			if statErr != nil {
				assert.NoDirExists(t, cfg.OutputDir)
			} else {
				entries, err := os.ReadDir(cfg.OutputDir)
				require.NoError(t, err)
				assert.Empty(t, entries)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := newRun(t, records.BAM, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, cfg.OutputDir)
	assertNoStaging(t, cfg)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := newRun(t, records.BAM, 4)
	cfg.Threads = 0
	_, err := Run(context.Background(), cfg, nil)
	assert.Error(t, err)
	assert.NoDirExists(t, cfg.OutputDir)
}
