package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the baseline document version this build understands.
const SchemaVersion = 1

//go:embed baseline.yaml
var embeddedBaseline []byte

// Document is the on-disk baseline knowledge format.
type Document struct {
	Version      int                   `yaml:"version"`
	Apps         []Entry               `yaml:"apps"`
	Contexts     []Entry               `yaml:"contexts"`
	Behaviors    map[string]Policy     `yaml:"behaviors"`
	Capabilities map[string]Capability `yaml:"capabilities"`
}

// ParseDocument decodes and validates a baseline document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse baseline: %w", err)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("baseline version %d not supported (want %d)", doc.Version, SchemaVersion)
	}
	for i, e := range doc.Apps {
		if e.ID == "" || len(e.Apps) == 0 {
			return nil, fmt.Errorf("baseline app entry %d: id and apps are required", i)
		}
	}
	for i, e := range doc.Contexts {
		if e.ID == "" || e.TitleContains == "" {
			return nil, fmt.Errorf("baseline context entry %d: id and title_contains are required", i)
		}
	}
	for name, p := range doc.Behaviors {
		p.Name = name
		doc.Behaviors[name] = p
	}
	return &doc, nil
}

// Baseline is the static knowledge tier. It implements Tier,
// PolicyProvider and CapabilityProvider.
type Baseline struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	doc     *Document
	entries []Entry
}

// LoadBaseline loads the baseline from path, or the built-in document when
// path is empty.
func LoadBaseline(path string, logger *zap.Logger) (*Baseline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Baseline{path: path, logger: logger.Named("knowledge")}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload rereads the baseline. On error the previous document stays in use.
func (b *Baseline) Reload() error {
	data := embeddedBaseline
	if b.path != "" {
		var err error
		data, err = os.ReadFile(b.path)
		if err != nil {
			return fmt.Errorf("read baseline: %w", err)
		}
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(doc.Apps)+len(doc.Contexts))
	entries = append(entries, doc.Apps...)
	entries = append(entries, doc.Contexts...)
	for i := range entries {
		entries[i].Source = SourceBaseline
	}

	b.mu.Lock()
	b.doc = doc
	b.entries = entries
	b.mu.Unlock()

	b.logger.Info("baseline loaded",
		zap.String("path", b.pathOrEmbedded()),
		zap.Int("apps", len(doc.Apps)),
		zap.Int("contexts", len(doc.Contexts)),
		zap.Int("behaviors", len(doc.Behaviors)))
	return nil
}

func (b *Baseline) pathOrEmbedded() string {
	if b.path == "" {
		return "(embedded)"
	}
	return b.path
}

// Source implements Tier.
func (b *Baseline) Source() Source { return SourceBaseline }

// Lookup implements Tier.
func (b *Baseline) Lookup(_ context.Context, app, title string) (Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := Best(b.entries, app, title)
	return e, ok, nil
}

// Entries returns every baseline entry sorted by id.
func (b *Baseline) Entries() []Entry {
	b.mu.RLock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Policy implements PolicyProvider.
func (b *Baseline) Policy(name string) Policy {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.doc.Behaviors[name]; ok {
		return p
	}
	return DefaultPolicy()
}

// Capability implements CapabilityProvider.
func (b *Baseline) Capability(task string) (Capability, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.doc.Capabilities[task]
	return c, ok
}

// Watch reloads the baseline whenever its file changes, until ctx is done.
// It is a no-op for the embedded document.
func (b *Baseline) Watch(ctx context.Context) error {
	if b.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("baseline watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files on save; watching the directory survives that.
	dir := filepath.Dir(b.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(b.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := b.Reload(); err != nil {
				b.logger.Warn("baseline reload failed, keeping previous", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn("baseline watcher error", zap.Error(err))
		}
	}
}
