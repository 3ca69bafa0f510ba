package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"session-tracker/internal/auth"
	"session-tracker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCommandIssuesValidToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--address", "alice"})
	require.NoError(t, root.Execute())

	svc := auth.NewService(config.AuthConfig{JWTSecret: "cli-secret", TokenTTL: time.Hour})
	claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Address)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("JWT_SECRET", "")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--address", "alice"})
	assert.ErrorIs(t, root.Execute(), auth.ErrDisabled)
}
