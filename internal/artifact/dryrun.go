package artifact

import "sync"

// DryRun wraps a Store so that reads and locking go through but Create and
// Save only remember what would have been written.
type DryRun struct {
	Store

	mu      sync.Mutex
	pending map[string][]byte
}

func NewDryRun(s Store) *DryRun {
	return &DryRun{Store: s, pending: make(map[string][]byte)}
}

func (d *DryRun) Exists(h *Handle) (bool, error) {
	d.mu.Lock()
	_, ok := d.pending[h.Name()]
	d.mu.Unlock()
	if ok {
		return true, nil
	}
	return d.Store.Exists(h)
}

func (d *DryRun) Load(h *Handle) ([]byte, error) {
	d.mu.Lock()
	content, ok := d.pending[h.Name()]
	d.mu.Unlock()
	if ok {
		return content, nil
	}
	return d.Store.Load(h)
}

func (d *DryRun) Create(h *Handle, content []byte) error {
	exists, err := d.Exists(h)
	if err != nil {
		return err
	}
	if exists {
		return ErrExist
	}
	d.keep(h.Name(), content)
	return nil
}

func (d *DryRun) Save(h *Handle, content []byte) error {
	d.keep(h.Name(), content)
	return nil
}

// Pending returns the content that would have been written to name.
func (d *DryRun) Pending(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.pending[name]
	return content, ok
}

func (d *DryRun) keep(name string, content []byte) {
	d.mu.Lock()
	d.pending[name] = append([]byte(nil), content...)
	d.mu.Unlock()
}
