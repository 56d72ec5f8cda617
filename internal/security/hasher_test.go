// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/pkg/errutil"
)

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := security.NewArgon2idHasher()

	t.Run("produces PHC string", func(t *testing.T) {
		hash, err := hasher.Hash("secret")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	})

	t.Run("salts every hash", func(t *testing.T) {
		h1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		h2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, security.CodeAuthEmptyPassword)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := security.NewArgon2idHasher()
	hash, err := hasher.Hash("correct")
	require.NoError(t, err)

	ok, err := hasher.Verify("correct", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	tests := []struct {
		name string
		hash string
	}{
		{"wrong part count", "not-a-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"unsupported version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"zero threads", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA"},
		{"empty key", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, security.CodeAuthInvalidHash)
		})
	}
}
