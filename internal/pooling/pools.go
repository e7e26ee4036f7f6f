package pooling

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// PoolSet owns the output streams of one run, one writer goroutine per pool.
type PoolSet struct {
	pools   []Pool
	files   []string
	writers []*records.AsyncWriter
}

// OpenPools creates the 3L pool files in dir, all sharing tmpl's header.
// If any pool cannot be created the ones already open are closed again.
func OpenPools(dir string, topo *Topology, format records.Format, tmpl records.Template, queue int) (*PoolSet, error) {
	ps := &PoolSet{}
	for _, p := range topo.Pools() {
		file := p.FileName(format.Ext())
		w, err := records.CreateWriter(format, filepath.Join(dir, file), tmpl)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("open %s: %w", p.Name(), err), ps.Close())
		}
		ps.pools = append(ps.pools, p)
		ps.files = append(ps.files, file)
		ps.writers = append(ps.writers, records.NewAsyncWriter(w, queue))
	}
	return ps, nil
}

// Submit queues batch for pool id.
func (ps *PoolSet) Submit(ctx context.Context, id PoolID, batch []records.Record) error {
	if int(id) < 0 || int(id) >= len(ps.writers) {
		return fmt.Errorf("no pool with id %d", id)
	}
	return ps.writers[id].Submit(ctx, batch)
}

// Pools lists the pools in number order.
func (ps *PoolSet) Pools() []Pool { return ps.pools }

// File is the file name, relative to the output directory, of pool id.
func (ps *PoolSet) File(id PoolID) string { return ps.files[id] }

// Written is the number of records written to pool id so far.
func (ps *PoolSet) Written(id PoolID) int64 { return ps.writers[id].Written() }

// Close finalizes every pool file, even when some of them fail.
func (ps *PoolSet) Close() error {
	var err error
	for i, w := range ps.writers {
		if cerr := w.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", ps.pools[i].Name(), cerr))
		}
	}
	return err
}
