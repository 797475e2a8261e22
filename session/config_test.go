package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	base := Config{ID: "s1", Host: "h", User: "u", Auth: AuthKey, KeyPath: "/k"}
	require.NoError(t, base.Validate())

	missingID := base
	missingID.ID = ""
	assert.Error(t, missingID.Validate())

	missingHost := base
	missingHost.Host = ""
	assert.Error(t, missingHost.Validate())

	missingUser := base
	missingUser.User = ""
	assert.Error(t, missingUser.Validate())

	// A missing KeyPath/Password is not a Validate-time error: the worker
	// surfaces it as a runtime connect failure (Error then ReconnectFailed),
	// so these configs must pass Validate and fail only once connectShell
	// runs. See TestSession_EmptyKeyPathIsRuntimeNotConfigError for that scenario.
	keyWithoutPath := base
	keyWithoutPath.KeyPath = ""
	require.NoError(t, keyWithoutPath.Validate())

	pw := Config{ID: "s2", Host: "h", User: "u", Auth: AuthPassword, Password: "secret"}
	require.NoError(t, pw.Validate())

	pwMissing := pw
	pwMissing.Password = ""
	require.NoError(t, pwMissing.Validate())

	unsupported := base
	unsupported.Auth = AuthMethod(99)
	assert.Error(t, unsupported.Validate())
}

func TestConfigDefaults(t *testing.T) {
	c := Config{ID: "s1", Host: "h", Port: 0, User: "u"}
	assert.Equal(t, uint16(22), c.port())
	assert.Equal(t, defaultMaxRetries, c.reconnectMaxRetries())
	assert.Equal(t, "u@h:22", c.hostDisplay())

	withOverrides := Config{ID: "s1", Host: "h", Port: 2222, User: "u", ReconnectMaxRetries: 7}
	assert.Equal(t, uint16(2222), withOverrides.port())
	assert.Equal(t, uint32(7), withOverrides.reconnectMaxRetries())
}
