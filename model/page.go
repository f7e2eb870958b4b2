package model

// This file contains the page and page set definitions consumed by the
// page runner and the results aggregator.

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/perfgo/pagerunner/browser"
	"gopkg.in/yaml.v3"
)

const fileScheme = "file://"

// Page is a single navigable target under test.
// A page is identified by its pointer: two pages sharing a URL are distinct.
type Page struct {
	// URL-like locator of the page (http://, https://, file://, chrome://)
	URL string `yaml:"url" json:"url"`
	// Optional display name used in summaries instead of the URL
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Browser startup URL; pages with a startup URL need their own browser
	StartupURL string `yaml:"startup_url,omitempty" json:"startup_url,omitempty"`
	// Key into the credentials file, empty when no login is needed
	Credentials string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	// Web page replay archive, passed through to the browser launcher
	ArchivePath string `yaml:"archive_path,omitempty" json:"archive_path,omitempty"`

	// NavigateSteps replaces the default navigation to URL.
	NavigateSteps func(ctx context.Context, tab browser.Tab) error `yaml:"-" json:"-"`
	// CanRunOnBrowser reports whether the page supports the launched browser.
	CanRunOnBrowser func(b browser.Browser) bool `yaml:"-" json:"-"`
}

// RunNavigateSteps navigates tab to the page.
func (p *Page) RunNavigateSteps(ctx context.Context, tab browser.Tab) error {
	if p.NavigateSteps != nil {
		return p.NavigateSteps(ctx, tab)
	}
	return tab.Navigate(ctx, p.URL)
}

// CanRunOn reports whether the page can run on b. Pages without a
// CanRunOnBrowser hook run everywhere.
func (p *Page) CanRunOn(b browser.Browser) bool {
	if p.CanRunOnBrowser == nil {
		return true
	}
	return p.CanRunOnBrowser(b)
}

// IsFile reports whether the page is served from the local file system.
func (p *Page) IsFile() bool {
	return strings.HasPrefix(p.URL, fileScheme)
}

// DisplayName returns the name of the page when no page set is known.
func (p *Page) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.IsFile() {
		return path.Base(strings.TrimPrefix(p.URL, fileScheme))
	}
	return p.URL
}

func (p *Page) String() string {
	return p.URL
}

// PageSet is the ordered collection of pages for one run.
type PageSet struct {
	Pages []*Page `yaml:"pages" json:"pages"`
	// JSON file with credentials, keyed by credentials type
	CredentialsPath string `yaml:"credentials_path,omitempty" json:"credentials_path,omitempty"`
	// Default replay archive for pages without their own
	ArchiveDataFile string `yaml:"archive_data_file,omitempty" json:"archive_data_file,omitempty"`
	// User agent emulation (desktop, mobile, tablet)
	UserAgentType string `yaml:"user_agent_type,omitempty" json:"user_agent_type,omitempty"`
	// Directory relative paths in the page set resolve against
	BaseDir string `yaml:"-" json:"-"`
}

// AddPage appends a page navigating to url and returns it.
func (s *PageSet) AddPage(url string) *Page {
	p := &Page{URL: url}
	s.Pages = append(s.Pages, p)
	return p
}

// ArchivePathFor returns the replay archive the page should be served from.
func (s *PageSet) ArchivePathFor(p *Page) string {
	archive := p.ArchivePath
	if archive == "" {
		archive = s.ArchiveDataFile
	}
	if archive == "" || filepath.IsAbs(archive) || s.BaseDir == "" {
		return archive
	}
	return filepath.Join(s.BaseDir, archive)
}

// DisplayName returns the name of p in summaries: its explicit name, the
// path relative to the directory shared by all file pages of the set, or
// the URL.
func (s *PageSet) DisplayName(p *Page) string {
	if p.Name != "" {
		return p.Name
	}
	if !p.IsFile() {
		return p.URL
	}
	prefix := s.commonFileDir()
	return strings.TrimPrefix(strings.TrimPrefix(p.URL, fileScheme), prefix)
}

// commonFileDir returns the longest directory prefix, with trailing slash,
// shared by all file pages.
func (s *PageSet) commonFileDir() string {
	var common []string
	first := true
	for _, p := range s.Pages {
		if !p.IsFile() {
			continue
		}
		dir := path.Dir(strings.TrimPrefix(p.URL, fileScheme))
		var parts []string
		if dir != "." {
			parts = strings.SplitAfter(dir, "/")
		}
		if first {
			common = parts
			first = false
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && strings.TrimSuffix(common[n], "/") == strings.TrimSuffix(parts[n], "/") {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return ""
	}
	prefix := strings.Join(common, "")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// LoadPageSet reads a page set from a YAML file.
func LoadPageSet(filePath string) (*PageSet, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page set: %w", err)
	}

	var set PageSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse page set %s: %w", filePath, err)
	}
	set.BaseDir = filepath.Dir(filePath)

	if set.CredentialsPath != "" && !filepath.IsAbs(set.CredentialsPath) {
		set.CredentialsPath = filepath.Join(set.BaseDir, set.CredentialsPath)
	}

	for i, p := range set.Pages {
		if p == nil || p.URL == "" {
			return nil, fmt.Errorf("page %d in %s has no url", i, filePath)
		}
	}

	return &set, nil
}
