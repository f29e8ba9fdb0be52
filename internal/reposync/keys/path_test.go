package keys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    RepositoryPathInfo
		wantErr bool
	}{
		{
			name: "owner and repo",
			url:  "https://github.com/Owner/Repo.git",
			want: RepositoryPathInfo{BaseDomain: "github.com", FullDomain: "github.com", Owner: "owner", RepositoryName: "repo"},
		},
		{
			name: "no .git suffix",
			url:  "https://github.com/owner/repo",
			want: RepositoryPathInfo{BaseDomain: "github.com", FullDomain: "github.com", Owner: "owner", RepositoryName: "repo"},
		},
		{
			name: "trailing slash",
			url:  "https://github.com/owner/repo/",
			want: RepositoryPathInfo{BaseDomain: "github.com", FullDomain: "github.com", Owner: "owner", RepositoryName: "repo"},
		},
		{
			name: "group segment",
			url:  "https://gitlab.example.com/owner/group/repo",
			want: RepositoryPathInfo{BaseDomain: "example.com", FullDomain: "gitlab.example.com", Owner: "owner", Group: "group", RepositoryName: "repo"},
		},
		{
			name: "secondary group segments",
			url:  "https://gitlab.example.com/owner/group/sub1/sub2/repo",
			want: RepositoryPathInfo{BaseDomain: "example.com", FullDomain: "gitlab.example.com", Owner: "owner", Group: "group", SecondaryGroup: "sub1-sub2", RepositoryName: "repo"},
		},
		{
			name: "two-label host kept whole",
			url:  "https://localhost/owner/repo",
			want: RepositoryPathInfo{BaseDomain: "localhost", FullDomain: "localhost", Owner: "owner", RepositoryName: "repo"},
		},
		{
			name: "segments normalized and lowercased",
			url:  "https://GitHub.com/Ow ner!/Re*po",
			want: RepositoryPathInfo{BaseDomain: "github.com", FullDomain: "github.com", Owner: "ow-ner", RepositoryName: "re-po"},
		},
		{
			name:    "non-http scheme",
			url:     "git@github.com:owner/repo.git",
			wantErr: true,
		},
		{
			name:    "fewer than two segments",
			url:     "https://github.com/owner",
			wantErr: true,
		},
		{
			name:    "unparseable",
			url:     "http://[::1",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRepositoryURL(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseRepositoryURL(%q) mismatch (-want +got):\n%s", tc.url, diff)
			}
		})
	}
}

// TestURLNormalizationCollision exercises property P8: scheme/suffix/trailing
// slash variants of the same repository must resolve to identical path info.
func TestURLNormalizationCollision(t *testing.T) {
	urls := []string{
		"https://github.com/owner/repo.git",
		"https://github.com/owner/repo",
		"https://github.com/owner/repo/",
		"http://github.com/owner/repo",
	}
	var want RepositoryPathInfo
	for i, u := range urls {
		got, err := ParseRepositoryURL(u)
		if err != nil {
			t.Fatalf("ParseRepositoryURL(%q): %v", u, err)
		}
		if i == 0 {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseRepositoryURL(%q) diverged from baseline (-want +got):\n%s", u, diff)
		}
	}
}
