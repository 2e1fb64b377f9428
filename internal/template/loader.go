package template

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// blueprintFile is the on-disk shape of a template.
type blueprintFile struct {
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
	Stats Stats  `yaml:"stats"`
}

// YAMLLoader loads blueprints from <dir>/<source>.yaml. Concurrent loads of
// the same source share one read.
type YAMLLoader struct {
	dir   string
	log   *zap.Logger
	group singleflight.Group

	mu       sync.Mutex
	loads    int
	released int
}

func NewYAMLLoader(dir string, log *zap.Logger) *YAMLLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &YAMLLoader{dir: dir, log: log}
}

func (l *YAMLLoader) path(source string) (string, error) {
	clean := filepath.Clean(source)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid template source %q", source)
	}
	if filepath.Ext(clean) == "" {
		clean += ".yaml"
	}
	return filepath.Join(l.dir, clean), nil
}

// Load reads and parses one blueprint.
func (l *YAMLLoader) Load(ctx context.Context, source string) (*Template, error) {
	path, err := l.path(source)
	if err != nil {
		return nil, err
	}
	v, err, shared := l.group.Do(path, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return l.read(source, path)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.log.Debug("template load coalesced", zap.String("source", source))
	}
	// Every caller gets its own copy so a release of one cannot affect the other.
	tpl := *v.(*Template)
	l.mu.Lock()
	l.loads++
	l.mu.Unlock()
	return &tpl, nil
}

func (l *YAMLLoader) read(source, path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", source, err)
	}
	var f blueprintFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", source, err)
	}
	class, err := ParseClass(f.Class)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", source, err)
	}
	if f.Name == "" {
		f.Name = source
	}
	sum := blake2b.Sum256(raw)
	return &Template{
		Source: source,
		Name:   f.Name,
		Class:  class,
		Stats:  f.Stats,
		Digest: hex.EncodeToString(sum[:8]),
	}, nil
}

// Release is bookkeeping only; parsed blueprints hold no external resources.
func (l *YAMLLoader) Release(tpl *Template) {
	l.mu.Lock()
	l.released++
	l.mu.Unlock()
	l.log.Debug("template returned to loader", zap.String("source", tpl.Source))
}

// Outstanding returns loads not yet released.
func (l *YAMLLoader) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads - l.released
}

// StaticLoader serves templates from memory. Sources missing from the
// catalogue fail to load.
type StaticLoader struct {
	mu       sync.Mutex
	catalog  map[string]Template
	gate     chan struct{}
	loads    map[string]int
	released map[string]int
}

func NewStaticLoader(tpls ...Template) *StaticLoader {
	l := &StaticLoader{
		catalog:  make(map[string]Template, len(tpls)),
		loads:    make(map[string]int),
		released: make(map[string]int),
	}
	for _, t := range tpls {
		l.catalog[t.Source] = t
	}
	return l
}

// Hold makes every Load block until the returned function is called.
func (l *StaticLoader) Hold() (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gate = gate
	l.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (l *StaticLoader) Load(ctx context.Context, source string) (*Template, error) {
	l.mu.Lock()
	gate := l.gate
	l.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.catalog[source]
	if !ok {
		return nil, fmt.Errorf("template %q not in catalogue", source)
	}
	l.loads[source]++
	return &t, nil
}

func (l *StaticLoader) Release(tpl *Template) {
	l.mu.Lock()
	l.released[tpl.Source]++
	l.mu.Unlock()
}

// Loads returns how many times source was loaded.
func (l *StaticLoader) Loads(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[source]
}

// Releases returns how many times a template for source was released.
func (l *StaticLoader) Releases(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released[source]
}
