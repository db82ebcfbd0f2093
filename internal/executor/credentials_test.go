package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	blob, err := EncryptCredential("svc-token-abc123", "hunter2")
	require.NoError(t, err)

	secret, err := DecryptCredential(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "svc-token-abc123", secret)
}

func TestDecryptCredential_WrongPassword(t *testing.T) {
	blob, err := EncryptCredential("svc-token", "correct")
	require.NoError(t, err)

	_, err = DecryptCredential(blob, "incorrect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptCredential_RejectsEmptyInputs(t *testing.T) {
	_, err := EncryptCredential("", "pw")
	assert.Error(t, err)

	_, err = EncryptCredential("secret", "")
	assert.Error(t, err)

	_, err = DecryptCredential([]byte("{}"), "")
	assert.Error(t, err)
}

func TestEncryptCredential_UniqueSaltAndNonce(t *testing.T) {
	first, err := EncryptCredential("secret", "pw")
	require.NoError(t, err)
	second, err := EncryptCredential("secret", "pw")
	require.NoError(t, err)

	var a, b encryptedCredentialJSON
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptCredential_UnsupportedVersion(t *testing.T) {
	blob, err := EncryptCredential("secret", "pw")
	require.NoError(t, err)

	var stored encryptedCredentialJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	stored.Version = 99
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	_, err = DecryptCredential(tampered, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestDecryptCredential_TamperedCiphertext(t *testing.T) {
	blob, err := EncryptCredential("secret", "pw")
	require.NoError(t, err)

	var stored encryptedCredentialJSON
	require.NoError(t, json.Unmarshal(blob, &stored))
	// Flip the first ciphertext character; GCM must refuse to open it.
	c := []byte(stored.Ciphertext)
	if c[0] == 'A' {
		c[0] = 'B'
	} else {
		c[0] = 'A'
	}
	stored.Ciphertext = string(c)
	tampered, err := json.Marshal(stored)
	require.NoError(t, err)

	_, err = DecryptCredential(tampered, "pw")
	assert.Error(t, err)
}

func TestLoadCredential(t *testing.T) {
	blob, err := EncryptCredential("file-secret", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	secret, err := LoadCredential(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, "file-secret", secret)
}

func TestLoadCredential_MissingFile(t *testing.T) {
	_, err := LoadCredential("", "pw")
	assert.Error(t, err)

	_, err = LoadCredential(filepath.Join(t.TempDir(), "nope.json"), "pw")
	assert.Error(t, err)
}
