package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cmdArgs []string, stdin string) (string, error) {
	t.Helper()
	root := AuthCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(cmdArgs)
	err := root.Execute()
	return out.String(), err
}

func TestAuthLogin_StoresCredentials(t *testing.T) {
	withConfigPath(t)

	out, err := execute(t, []string{"login", "--api-token", testAPIToken, "--url", "http://news.internal:8080"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully logged in")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, testAPIToken, config.APIToken)
	assert.Equal(t, "http://news.internal:8080", config.APIURL)
}

func TestAuthLogin_ReadsTokenFromStdin(t *testing.T) {
	withConfigPath(t)

	_, err := execute(t, []string{"login"}, testAPIToken+"\n")
	require.NoError(t, err)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, testAPIToken, config.APIToken)
	assert.Equal(t, defaultAPIURL, config.APIURL)
}

func TestAuthLogin_EmptyToken(t *testing.T) {
	withConfigPath(t)

	_, err := execute(t, []string{"login"}, "\n")
	assert.Error(t, err)
}

func TestAuthLogout_RemovesCredentials(t *testing.T) {
	configPath := withConfigPath(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: testAPIToken, APIURL: defaultAPIURL}))

	out, err := execute(t, []string{"logout"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully logged out")
	assert.NoFileExists(t, configPath)
}

func TestAuthStatus_NotAuthenticated(t *testing.T) {
	withConfigPath(t)
	t.Setenv(envAPIToken, "")
	t.Setenv(envAPIURL, "")

	out, err := execute(t, []string{"status"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")
}

func TestAuthStatus_JSONMasksToken(t *testing.T) {
	withConfigPath(t)
	t.Setenv(envAPIToken, "")
	t.Setenv(envAPIURL, "")
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: testAPIToken, APIURL: defaultAPIURL}))

	out, err := execute(t, []string{"status", "-o", "json"}, "")
	require.NoError(t, err)

	var status AuthStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, string(SourceGlobalConfig), status.Source)
	assert.Equal(t, "nw_0...cdef", status.APIToken)
	assert.NotContains(t, out, testAPIToken)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "abcd...mnop", maskToken("abcdefghijklmnop"))
}
