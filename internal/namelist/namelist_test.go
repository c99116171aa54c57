package namelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefault(t *testing.T) {
	names, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(Default), len(names))
	assert.Equal(t, "Katz's Delicatessen", names[0])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.toml")
	require.NoError(t, os.WriteFile(path, []byte(`names = ["  Joe's   Pizza ", "joe's pizza", "Carbone"]`), 0o600))

	names, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Joe's Pizza", "Carbone"}, names)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`names = [`))
	require.Error(t, err)

	_, err = Parse([]byte(`names = ["   "]`))
	require.Error(t, err)

	_, err = Parse([]byte(`other = 1`))
	require.Error(t, err)
}
