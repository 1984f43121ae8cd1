// Package config stores named deployment targets and tool settings in a YAML
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruffel/provision"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the file used when no path is configured.
const DefaultFileName = "provision.yaml"

var (
	// ErrNotFound indicates that a project or target does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates that a project name or target alias is already taken.
	ErrDuplicate = errors.New("already exists")
)

// File is the on-disk document.
type File struct {
	Tools    provision.Settings `yaml:"tools"`
	Projects []*Project         `yaml:"projects"`
}

// Project groups the targets of one deployable application.
type Project struct {
	Name           string    `yaml:"name"`
	CreatedAt      time.Time `yaml:"created_at"`
	UpdatedAt      time.Time `yaml:"updated_at"`
	Configurations []*Target `yaml:"configurations"`
}

// Target is a named deployment configuration: where to connect and which
// paths to use.
type Target struct {
	ID               uuid.UUID `yaml:"id"`
	Alias            string    `yaml:"alias"`
	Provider         string    `yaml:"provider,omitempty"`
	Host             string    `yaml:"host"`
	Port             int       `yaml:"port,omitempty"`
	User             string    `yaml:"user"`
	Password         string    `yaml:"password,omitempty"`
	KeyPath          string    `yaml:"key_path,omitempty"`
	Fingerprint      string    `yaml:"fingerprint,omitempty"`
	LocalPath        string    `yaml:"local_path,omitempty"`
	RemoteSavePath   string    `yaml:"remote_save_path"`
	RemoteBackupPath string    `yaml:"remote_backup_path,omitempty"`
	CreatedAt        time.Time `yaml:"created_at"`
	UpdatedAt        time.Time `yaml:"updated_at"`
}

// Profile converts the target to the connection profile used by a Controller.
func (t *Target) Profile() provision.Profile {
	return provision.Profile{
		Alias:            t.Alias,
		Host:             t.Host,
		Port:             t.Port,
		User:             t.User,
		Password:         t.Password,
		KeyPath:          t.KeyPath,
		Fingerprint:      t.Fingerprint,
		LocalPath:        t.LocalPath,
		RemoteSavePath:   t.RemoteSavePath,
		RemoteBackupPath: t.RemoteBackupPath,
	}.WithDefaults()
}

// Load reads the file at path. A missing file yields an empty File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}

		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &f, nil
}

// Save writes the file atomically with owner-only permissions, since targets
// may carry passwords.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".provision-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to set config permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config %s: %w", path, err)
	}

	return nil
}

// Project returns the project with the given name.
func (f *File) Project(name string) (*Project, error) {
	for _, p := range f.Projects {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}

	return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// AddProject creates an empty project.
func (f *File) AddProject(name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name cannot be empty")
	}

	if _, err := f.Project(name); err == nil {
		return nil, fmt.Errorf("project %q: %w", name, ErrDuplicate)
	}

	now := time.Now()
	p := &Project{Name: name, CreatedAt: now, UpdatedAt: now}
	f.Projects = append(f.Projects, p)

	return p, nil
}

// RemoveProject deletes a project and all of its targets.
func (f *File) RemoveProject(name string) error {
	for i, p := range f.Projects {
		if strings.EqualFold(p.Name, name) {
			f.Projects = append(f.Projects[:i], f.Projects[i+1:]...)

			return nil
		}
	}

	return fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// Find returns the target with the given alias in the named project.
func (f *File) Find(project, alias string) (*Target, error) {
	p, err := f.Project(project)
	if err != nil {
		return nil, err
	}

	return p.Target(alias)
}

// Target returns the target with the given alias.
func (p *Project) Target(alias string) (*Target, error) {
	for _, t := range p.Configurations {
		if strings.EqualFold(t.Alias, alias) {
			return t, nil
		}
	}

	return nil, fmt.Errorf("target %q in project %q: %w", alias, p.Name, ErrNotFound)
}

// Add appends t, assigning an ID and timestamps. Aliases are unique per project.
func (p *Project) Add(t *Target) error {
	t.Alias = strings.TrimSpace(t.Alias)
	if t.Alias == "" {
		return errors.New("target alias cannot be empty")
	}

	if _, err := p.Target(t.Alias); err == nil {
		return fmt.Errorf("target %q: %w", t.Alias, ErrDuplicate)
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	p.Configurations = append(p.Configurations, t)
	p.UpdatedAt = now

	return nil
}

// Update replaces the target with the same ID, keeping its creation time.
func (p *Project) Update(t *Target) error {
	for i, existing := range p.Configurations {
		if existing.ID != t.ID {
			continue
		}

		for _, other := range p.Configurations {
			if other.ID != t.ID && strings.EqualFold(other.Alias, t.Alias) {
				return fmt.Errorf("target %q: %w", t.Alias, ErrDuplicate)
			}
		}

		now := time.Now()
		t.CreatedAt = existing.CreatedAt
		t.UpdatedAt = now
		p.Configurations[i] = t
		p.UpdatedAt = now

		return nil
	}

	return fmt.Errorf("target %s: %w", t.ID, ErrNotFound)
}

// Remove deletes the target with the given ID.
func (p *Project) Remove(id uuid.UUID) error {
	for i, t := range p.Configurations {
		if t.ID == id {
			p.Configurations = append(p.Configurations[:i], p.Configurations[i+1:]...)
			p.UpdatedAt = time.Now()

			return nil
		}
	}

	return fmt.Errorf("target %s: %w", id, ErrNotFound)
}
