package enum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves a single repository acme/app.
func fakeGitHub(t *testing.T, truncated bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"app","full_name":"acme/app","default_branch":"main",
			"clone_url":"https://github.com/acme/app.git","owner":{"login":"acme"}}`)
	})
	mux.HandleFunc("GET /repos/acme/app/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprintf(w, `{"sha":"root","truncated":%t,"tree":[
			{"path":"config.yml","type":"blob","sha":"s1","size":18},
			{"path":"src","type":"tree","sha":"s2"},
			{"path":"big.txt","type":"blob","sha":"s3","size":999999},
			{"path":"logo.png","type":"blob","sha":"s4","size":4}
		]}`, truncated)
	})
	mux.HandleFunc("GET /repos/acme/app/git/blobs/s1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "password: hunter2\n")
	})
	mux.HandleFunc("GET /repos/acme/app/git/blobs/s4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 'P', 0x00, 'G'})
	})
	mux.HandleFunc("GET /orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"app","full_name":"acme/app","default_branch":"main","owner":{"login":"acme"}}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubEnumerator_Enumerate(t *testing.T) {
	srv := fakeGitHub(t, false)
	e, err := NewGitHubEnumerator(GitHubConfig{
		Token:   "test-token",
		BaseURL: srv.URL,
		Owner:   "acme",
		Repo:    "app",
		Rate:    1000,
		Config:  Config{MaxFileSize: 1024},
	})
	require.NoError(t, err)

	c := enumerate(t, e)
	require.Len(t, c.blobs, 1)
	assert.Equal(t, "password: hunter2\n", string(c.blobs[0].Content))
	assert.Equal(t, types.GitProvenance{RepoPath: "acme/app", BlobPath: "config.yml"}, c.blobs[0].Provenance)
}

func TestGitHubEnumerator_Truncated(t *testing.T) {
	srv := fakeGitHub(t, true)
	e, err := NewGitHubEnumerator(GitHubConfig{BaseURL: srv.URL, Owner: "acme", Repo: "app", Rate: 1000})
	require.NoError(t, err)

	err = e.Enumerate(context.Background(), func(Blob) error { return nil })
	assert.ErrorContains(t, err, "truncated")
}

func TestGitHubEnumerator_ListRepos(t *testing.T) {
	srv := fakeGitHub(t, false)
	e, err := NewGitHubEnumerator(GitHubConfig{BaseURL: srv.URL, Org: "acme", Rate: 1000})
	require.NoError(t, err)

	repos, err := e.ListRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RepoInfo{{Name: "acme/app", DefaultBranch: "main"}}, repos)
}

func TestGitHubEnumerator_RequiresTarget(t *testing.T) {
	e, err := NewGitHubEnumerator(GitHubConfig{Token: "test-token"})
	require.NoError(t, err, "construction succeeds without a target")

	err = e.Enumerate(context.Background(), func(Blob) error { return nil })
	assert.ErrorContains(t, err, "must specify repo")

	e, err = NewGitHubEnumerator(GitHubConfig{Repo: "app"})
	require.NoError(t, err)
	err = e.Enumerate(context.Background(), func(Blob) error { return nil })
	assert.ErrorContains(t, err, "owner required")
}

func TestGitHubEnumerator_BadBaseURL(t *testing.T) {
	_, err := NewGitHubEnumerator(GitHubConfig{BaseURL: "://bad"})
	assert.Error(t, err)
}
