package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"macdesigns/internal/content"
)

// Contact holds where visitor messages go.
type Contact struct {
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// Site is the site file: identity, the gate allowlist and the portfolio content.
//
// Passwords are kept in plaintext on purpose. The gate is a courtesy screen and
// the list is no more secret than the site itself. Entries may also be bcrypt
// hashes.
type Site struct {
	Title     string            `yaml:"title"`
	Owner     string            `yaml:"owner"`
	Contact   Contact           `yaml:"contact"`
	Passwords []string          `yaml:"passwords"`
	Content   content.Portfolio `yaml:"content"`
}

// DefaultPasswords seed a generated site file.
var DefaultPasswords = []string{"MelissaAI123!", "MACDesigns2024!", "UXPortfolio!"}

// Manager provides thread-safe access to the site file.
// It caches the parsed file in memory with RWMutex protection.
type Manager struct {
	mu   sync.RWMutex
	site *Site
	path string
}

// NewManager loads the site file at path, generating a default one first if it
// does not exist.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		def := DefaultSite()
		if err := m.save(&def); err != nil {
			return nil, fmt.Errorf("generate default site file: %w", err)
		}
	}

	if err := m.Reload(); err != nil {
		return nil, fmt.Errorf("load site file: %w", err)
	}
	return m, nil
}

// DefaultSite is the site written on first start.
func DefaultSite() Site {
	return Site{
		Title: "MAC DESIGNS",
		Owner: "Melissa Casole",
		Contact: Contact{
			Email: "melissa.casole@yahoo.com",
			Phone: "",
		},
		Passwords: append([]string(nil), DefaultPasswords...),
		Content:   content.Default(),
	}
}

// Path returns the site file location.
func (m *Manager) Path() string {
	return m.path
}

// Get returns a copy of the current site.
func (m *Manager) Get() Site {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSite(*m.site)
}

// Update validates and writes a new site file, then swaps it in.
func (m *Manager) Update(site Site) error {
	if err := site.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.save(&site); err != nil {
		return err
	}
	cloned := cloneSite(site)
	m.site = &cloned
	return nil
}

// Reload re-reads the site file. On error the previous site stays in place.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read site file: %w", err)
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return fmt.Errorf("parse site file: %w", err)
	}
	if err := site.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cloned := cloneSite(site)
	m.site = &cloned
	return nil
}

// Validate checks the site can drive the gate and the content pages.
func (s Site) Validate() error {
	n := 0
	for _, p := range s.Passwords {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	if n == 0 {
		return errors.New("site file: at least one password is required")
	}
	if err := s.Content.Validate(); err != nil {
		return fmt.Errorf("site file content: %w", err)
	}
	return nil
}

func (m *Manager) save(site *Site) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}

	data, err := yaml.Marshal(site)
	if err != nil {
		return fmt.Errorf("marshal site file: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write site file: %w", err)
	}
	return os.Rename(tmp, m.path)
}

func cloneSite(s Site) Site {
	out := s
	if s.Passwords != nil {
		out.Passwords = append([]string(nil), s.Passwords...)
	}
	if s.Content.Projects != nil {
		out.Content.Projects = append([]content.Project(nil), s.Content.Projects...)
	}
	if s.Content.Skills != nil {
		out.Content.Skills = append([]content.Skill(nil), s.Content.Skills...)
	}
	if s.Content.Experience != nil {
		out.Content.Experience = append([]content.Experience(nil), s.Content.Experience...)
	}
	if s.Content.CaseStudies != nil {
		out.Content.CaseStudies = append([]content.CaseStudy(nil), s.Content.CaseStudies...)
	}
	return out
}
