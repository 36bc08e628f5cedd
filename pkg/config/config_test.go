package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmetering/godlms/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meter.ini")
	require.Nil(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeProfile(t, "host = 192.0.2.1\n")
	profile, err := Load(path, "")
	require.Nil(t, err)
	assert.Equal(t, "tcp", profile.Transport)
	assert.Equal(t, 4059, profile.Port)
	assert.Equal(t, "wrapper", profile.Session)
	assert.EqualValues(t, 0x10, profile.ClientSAP)
}

func TestLoadFullProfile(t *testing.T) {
	path := writeProfile(t, `
[lab]
transport = tcp
host = 192.0.2.7
port = 4060
session = hdlc
client_sap = 16
server_sap = 1
max_info_tx = 256
window_tx = 2
authentication = hls5
ciphered = true
system_title = 4F504D4300000001
encryption_key = 11111111111111111111111111111111
authentication_key = 22222222222222222222222222222222
timeout = 3
`)
	profile, err := Load(path, "lab")
	require.Nil(t, err)
	assert.Equal(t, "hdlc", profile.Session)
	assert.EqualValues(t, 256, profile.MaxInfoTx)

	settings, err := profile.Settings()
	require.Nil(t, err)
	assert.Equal(t, client.AuthHighGMAC, settings.Authentication)
	assert.True(t, settings.Ciphered)
	assert.Len(t, settings.SystemTitle, 8)
	assert.Len(t, settings.EncryptionKey, 16)

	assoc, err := profile.Build()
	require.Nil(t, err)
	assert.NotNil(t, assoc)
}

func TestBadKeyLength(t *testing.T) {
	path := writeProfile(t, "encryption_key = 1122\n")
	profile, err := Load(path, "")
	require.Nil(t, err)
	_, err = profile.Settings()
	assert.NotNil(t, err)
}

func TestUnknownAuthentication(t *testing.T) {
	path := writeProfile(t, "authentication = telepathy\n")
	profile, err := Load(path, "")
	require.Nil(t, err)
	_, err = profile.Settings()
	assert.NotNil(t, err)
}
