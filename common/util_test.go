//go:build unit
// +build unit

package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAsset(t *testing.T) {
	batch, err := GetAsset("bell_pair.json")
	assert.Nil(t, err)
	assert.Contains(t, batch, "\"id\": \"bell-pair\"")
	assert.Contains(t, batch, "\"name\": \"cx\"")
}

func TestGetAssetMissing(t *testing.T) {
	_, err := GetAsset("no_such_asset.json")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.txt")
	assert.Nil(t, os.WriteFile(path, []byte("hello"), 0644))

	content, err := ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, "hello", content)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestIsDirWritable(t *testing.T) {
	assert.Nil(t, IsDirWritable(t.TempDir()))
}

func TestIsDirWritableMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	err := IsDirWritable(missing)
	assert.ErrorContains(t, err, "directory does not exist")
}

func TestIsDirWritableNotADir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	assert.Nil(t, os.WriteFile(path, []byte("x"), 0644))

	err := IsDirWritable(path)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestReadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setting.toml")
	assert.Nil(t, os.WriteFile(path, []byte("[com.sampling]\n"), 0644))

	content, err := ReadSettingsFile(path)
	assert.Nil(t, err)
	assert.Equal(t, "[com.sampling]\n", content)

	_, err = ReadSettingsFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
