// Package registry keeps a user-level name → path lookup of memoflow
// repositories, so commands can address a repository by name from anywhere.
// It is an explicit service instance handed to callers, not a process-wide
// singleton.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultFile returns the registry location under the user's home
// directory (~/.memoflow/repos.json).
func DefaultFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry: home dir: %w", err)
	}
	return filepath.Join(home, ".memoflow", "repos.json"), nil
}

// Repo is one registered repository.
type Repo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type fileFormat struct {
	Repos []Repo `json:"repos"`
}

// Registry is a JSON-file-backed repository registry.
type Registry struct {
	file   string
	logger *slog.Logger
	repos  []Repo
}

// Open loads the registry from the given file. A missing or corrupt file
// yields an empty registry with a warning.
func Open(file string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{file: file, logger: logger}

	data, err := os.ReadFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("repo registry unreadable", slog.String("error", err.Error()))
		}
		return r
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logger.Warn("repo registry corrupt, starting empty", slog.String("error", err.Error()))
		return r
	}
	for _, repo := range ff.Repos {
		if repo.Name != "" && repo.Path != "" {
			r.repos = append(r.repos, repo)
		}
	}
	return r
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.file), 0o755); err != nil {
		return fmt.Errorf("registry: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(fileFormat{Repos: r.repos}, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}
	if err := os.WriteFile(r.file, data, 0o644); err != nil {
		return fmt.Errorf("registry: write: %w", err)
	}
	return nil
}

// List returns every registered repository.
func (r *Registry) List() []Repo {
	out := make([]Repo, len(r.repos))
	copy(out, r.repos)
	return out
}

// Add registers a repository. A name already bound to a different path, or
// a path already registered under another name, is skipped with a warning
// rather than treated as an error.
func (r *Registry) Add(name, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("registry: resolve path: %w", err)
	}
	for _, repo := range r.repos {
		if repo.Name == name {
			if repo.Path == abs {
				return nil
			}
			r.logger.Warn("repo name already registered, keeping existing",
				slog.String("name", name), slog.String("existing", repo.Path))
			return nil
		}
	}
	for _, repo := range r.repos {
		if repo.Path == abs {
			r.logger.Info("path already registered under another name",
				slog.String("path", abs), slog.String("name", repo.Name))
			return nil
		}
	}
	r.repos = append(r.repos, Repo{Name: name, Path: abs})
	return r.save()
}

// ByName returns the repository registered under name.
func (r *Registry) ByName(name string) (Repo, bool) {
	for _, repo := range r.repos {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repo{}, false
}

// ByPath returns the repository registered at path.
func (r *Registry) ByPath(path string) (Repo, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Repo{}, false
	}
	for _, repo := range r.repos {
		if repo.Path == abs {
			return repo, true
		}
	}
	return Repo{}, false
}

// RemoveByName unregisters by name. Returns true when something was removed.
func (r *Registry) RemoveByName(name string) (bool, error) {
	before := len(r.repos)
	kept := r.repos[:0]
	for _, repo := range r.repos {
		if repo.Name != name {
			kept = append(kept, repo)
		}
	}
	r.repos = kept
	if len(r.repos) == before {
		return false, nil
	}
	return true, r.save()
}

// RemoveByPath unregisters by path. Returns true when something was removed.
func (r *Registry) RemoveByPath(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("registry: resolve path: %w", err)
	}
	before := len(r.repos)
	kept := r.repos[:0]
	for _, repo := range r.repos {
		if repo.Path != abs {
			kept = append(kept, repo)
		}
	}
	r.repos = kept
	if len(r.repos) == before {
		return false, nil
	}
	return true, r.save()
}
