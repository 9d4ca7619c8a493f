package actions

import (
	"context"
	_ "embed"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"
)

//go:embed actions.yaml
var defaultCatalog []byte

type Action struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Other       string   `yaml:"other"`
	Self        string   `yaml:"self"`
	SelfOnly    bool     `yaml:"self_only"`
	Noun        string   `yaml:"noun"`
	Color       int      `yaml:"color"`
	Query       string   `yaml:"query"`
	GIFs        []string `yaml:"gifs"`
}

// Text renders the line shown in the embed, targetMention is empty for self actions
func (a *Action) Text(authorMention, targetMention string) string {
	tmpl := a.Self
	if targetMention != "" && !a.SelfOnly {
		tmpl = a.Other
	}

	r := strings.NewReplacer("{{author}}", authorMention, "{{target}}", targetMention)
	return r.Replace(tmpl)
}

func (a *Action) RandomGIF() string {
	if len(a.GIFs) == 0 {
		return ""
	}
	return a.GIFs[rand.Intn(len(a.GIFs))]
}

// ParseCatalog decodes and validates a yaml action list
func ParseCatalog(raw []byte) (map[string]*Action, error) {
	var list []*Action
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, errors.WithMessage(err, "yaml")
	}

	catalog := make(map[string]*Action, len(list))
	for i, a := range list {
		a.Name = strings.ToLower(strings.TrimSpace(a.Name))
		switch {
		case a.Name == "":
			return nil, errors.Errorf("action #%d has no name", i+1)
		case a.Self == "":
			return nil, errors.Errorf("action %s has no self text", a.Name)
		case !a.SelfOnly && a.Other == "":
			return nil, errors.Errorf("action %s has no text for targets", a.Name)
		case catalog[a.Name] != nil:
			return nil, errors.Errorf("action %s is defined twice", a.Name)
		}

		if a.Noun == "" {
			a.Noun = a.Name
		}
		catalog[a.Name] = a
	}

	return catalog, nil
}

// Catalog holds the current action list, swapped in whole on reload
type Catalog struct {
	path string

	mu      sync.RWMutex
	actions map[string]*Action
}

// NewCatalog loads the actions from path, or the built in list when path is empty
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Reload() error {
	raw := defaultCatalog
	if c.path != "" {
		var err error
		raw, err = os.ReadFile(c.path)
		if err != nil {
			return errors.WithStackIf(err)
		}
	}

	actions, err := ParseCatalog(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.actions = actions
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Get(name string) *Action {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actions[name]
}

// Names returns the action names in no particular order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.actions))
	for k := range c.actions {
		names = append(names, k)
	}
	return names
}

// Watch reloads the catalog when its file changes until ctx is done.
// A broken file keeps the previous catalog.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStackIf(err)
	}
	defer w.Close()

	// editors often replace the file, so the directory is watched
	if err = w.Add(filepath.Dir(c.path)); err != nil {
		return errors.WithStackIf(err)
	}

	file := filepath.Base(c.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != file || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				if err := c.Reload(); err != nil {
					logger.WithError(err).WithField("file", c.path).Error("Failed reloading actions, keeping the old ones")
					return
				}
				logger.WithField("file", c.path).Info("Reloaded actions")
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Actions file watcher error")
		}
	}
}
