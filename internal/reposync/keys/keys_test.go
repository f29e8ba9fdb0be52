package keys

import "testing"

func TestEnsurePrefix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"foo", "foo/"},
		{"/foo/", "foo/"},
		{"foo/bar", "foo/bar/"},
		{"///", ""},
	}
	for _, tc := range tests {
		if got := EnsurePrefix(tc.in); got != tc.want {
			t.Errorf("EnsurePrefix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRepositoryPrefixAndIdentity(t *testing.T) {
	info := RepositoryPathInfo{
		BaseDomain:     "github.com",
		FullDomain:     "github.com",
		Owner:          "owner",
		RepositoryName: "repo",
	}
	gotPrefix := RepositoryPrefix(ModeProvider, "github", info)
	wantPrefix := "repositories/provider/github/owner/repo"
	if gotPrefix != wantPrefix {
		t.Errorf("RepositoryPrefix(provider) = %q, want %q", gotPrefix, wantPrefix)
	}

	gotID := Identity(ModeProvider, "github", info)
	wantID := "provider/github/github.com/owner/repo"
	if gotID != wantID {
		t.Errorf("Identity(provider) = %q, want %q", gotID, wantID)
	}

	urlPrefix := RepositoryPrefix(ModeURL, "", info)
	wantURLPrefix := "repositories/url/github.com/owner/repo"
	if urlPrefix != wantURLPrefix {
		t.Errorf("RepositoryPrefix(url) = %q, want %q", urlPrefix, wantURLPrefix)
	}

	urlID := Identity(ModeURL, "", info)
	wantURLID := "url/github.com/owner/repo"
	if urlID != wantURLID {
		t.Errorf("Identity(url) = %q, want %q", urlID, wantURLID)
	}
}

func TestIndexAndArchiveKeys(t *testing.T) {
	if got, want := RegistryKey(), "indexes/repositories/registry.json"; got != want {
		t.Errorf("RegistryKey() = %q, want %q", got, want)
	}
	identity := "provider/github/github.com/owner/repo"
	if got, want := IndexKey(identity), "indexes/repositories/provider/github/github.com/owner/repo/index.json"; got != want {
		t.Errorf("IndexKey() = %q, want %q", got, want)
	}
	prefix := "repositories/provider/github/owner/repo"
	if got, want := ArchiveKey(prefix, 1700000000), "repositories/provider/github/owner/repo/1700000000_repo.tar.gz"; got != want {
		t.Errorf("ArchiveKey() = %q, want %q", got, want)
	}
	if got, want := MarkerKey(prefix), "repositories/provider/github/owner/repo/.repository-root"; got != want {
		t.Errorf("MarkerKey() = %q, want %q", got, want)
	}
}

func TestLocalPath(t *testing.T) {
	info := RepositoryPathInfo{FullDomain: "github.com", Owner: "owner", RepositoryName: "repo"}
	prefix := RepositoryPrefix(ModeURL, "", info)
	got := LocalPath("/var/lib/gitvault", ModeURL, "", "https://github.com/owner/repo", prefix)
	want := "/var/lib/gitvault/repositories/url/github.com/owner/repo"
	if got != want {
		t.Errorf("LocalPath(url) = %q, want %q", got, want)
	}

	providerPath := LocalPath("/var/lib/gitvault", ModeProvider, "github", "https://github.com/owner/repo", prefix)
	if providerPath == got {
		t.Errorf("provider-mode local path should not match url-mode layout")
	}
	// Deterministic: same inputs produce the same path.
	again := LocalPath("/var/lib/gitvault", ModeProvider, "github", "https://github.com/owner/repo", prefix)
	if providerPath != again {
		t.Errorf("LocalPath(provider) not deterministic: %q != %q", providerPath, again)
	}
}
