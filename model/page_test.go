package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageSet_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want []string
	}{
		{
			name: "file pages without directory",
			urls: []string{"file://blank.html", "file://green_rect.html"},
			want: []string{"blank.html", "green_rect.html"},
		},
		{
			name: "file pages share a directory",
			urls: []string{"file:///data/pages/a.html", "file:///data/pages/sub/b.html"},
			want: []string{"a.html", "sub/b.html"},
		},
		{
			name: "single file page",
			urls: []string{"file://unittest_data/blank.html"},
			want: []string{"blank.html"},
		},
		{
			name: "http pages keep their url",
			urls: []string{"http://www.bar.com/", "file://x/blank.html"},
			want: []string{"http://www.bar.com/", "blank.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &PageSet{}
			for _, u := range tt.urls {
				set.AddPage(u)
			}
			var got []string
			for _, p := range set.Pages {
				got = append(got, set.DisplayName(p))
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPageSet_DisplayNamePrefersName(t *testing.T) {
	set := &PageSet{}
	p := set.AddPage("http://www.foo.com/")
	p.Name = "foo"
	require.Equal(t, "foo", set.DisplayName(p))
	require.Equal(t, "foo", p.DisplayName())
}

func TestLoadPageSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.yaml")
	content := `
credentials_path: credentials.json
archive_data_file: data/archive.wpr
user_agent_type: tablet
pages:
  - url: file://blank.html
  - url: http://www.example.com/
    startup_url: about:blank
    credentials: test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	set, err := LoadPageSet(path)
	require.NoError(t, err)
	require.Len(t, set.Pages, 2)
	require.Equal(t, filepath.Join(dir, "credentials.json"), set.CredentialsPath)
	require.Equal(t, "tablet", set.UserAgentType)
	require.Equal(t, "about:blank", set.Pages[1].StartupURL)
	require.Equal(t, "test", set.Pages[1].Credentials)
	require.Equal(t, filepath.Join(dir, "data/archive.wpr"), set.ArchivePathFor(set.Pages[0]))
}

func TestLoadPageSet_MissingURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pages:\n  - name: nothing\n"), 0644))

	_, err := LoadPageSet(path)
	require.Error(t, err)
}
