package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitLabCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"gitlab"})
	require.NoError(t, err)
	assert.Equal(t, "gitlab", cmd.Name())
}

func TestGitLabCommand_Flags(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"gitlab"})
	require.NoError(t, err)

	for _, name := range []string{"token", "group", "user", "url", "datastore", "format", "no-clone", "git"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "--%s flag should exist", name)
	}
}

func TestRunGitLabScan_Validation(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "")
	gitlabToken = ""
	gitlabGroup = ""
	gitlabUser = ""

	cmd, _ := newTestCommand()
	err := runGitLabScan(cmd, []string{"group/project"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require a token")

	gitlabToken = "glpat-test"
	defer func() { gitlabToken = "" }()
	err = runGitLabScan(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must specify namespace/project")
}
