package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
)

var errNoDB = errors.New("база недоступна")

func failingConnect(called *bool) connectFunc {
	return func(*cobra.Command, string) (*sqlx.DB, error) {
		*called = true
		return nil, errNoDB
	}
}

func execute(t *testing.T, cfg *config.Config, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	root := newRootCmdWith(cfg, connect)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedAdmin_WeakPasswordRejectedBeforeConnect(t *testing.T) {
	called := false
	cfg := &config.Config{AdminEmail: "admin@gigmarket.local"}

	_, err := execute(t, cfg, failingConnect(&called), "seed-admin", "--password", "123")
	require.Error(t, err)
	assert.False(t, called)
}

func TestSeedAdmin_InvalidEmail(t *testing.T) {
	called := false
	cfg := &config.Config{AdminPassword: "Str0ngPassw0rd!"}

	_, err := execute(t, cfg, failingConnect(&called), "seed-admin", "--email", "not-an-email")
	require.Error(t, err)
	assert.False(t, called)
}

func TestSeedAdmin_ConnectError(t *testing.T) {
	called := false
	cfg := &config.Config{AdminEmail: "admin@gigmarket.local", AdminPassword: "Str0ngPassw0rd!"}

	_, err := execute(t, cfg, failingConnect(&called), "seed-admin")
	assert.ErrorIs(t, err, errNoDB)
	assert.True(t, called)
}

func TestMigrate_ConnectError(t *testing.T) {
	called := false
	_, err := execute(t, &config.Config{MigrationsPath: "./migrations"}, failingConnect(&called), "migrate")
	assert.ErrorIs(t, err, errNoDB)
	assert.True(t, called)
}

func TestMigrate_RejectsArgs(t *testing.T) {
	called := false
	_, err := execute(t, &config.Config{}, failingConnect(&called), "migrate", "extra")
	assert.Error(t, err)
	assert.False(t, called)
}
