package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDeploymentFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "deployment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const sampleYAML = `
apiVersion: vessel/v1
kind: Deployment
nodes:
  - uuid: 11111111-1111-1111-1111-111111111111
    hostname: node-a
    applications:
      web:
        image: nginx:1
        running: true
`

func TestStoreApplyPersistsAndNotifies(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	notified := 0
	s.OnChange(func() { notified++ })

	path := writeDeploymentFile(t, dir, sampleYAML)
	require.NoError(t, s.Apply(path))

	assert.Equal(t, 1, notified)
	current := s.Current()
	require.Len(t, current.Nodes, 1)

	var found bool
	for _, n := range current.Nodes {
		if n.Hostname == "node-a" {
			found = true
			app, ok := n.Applications["web"]
			require.True(t, ok)
			assert.Equal(t, "nginx:1", app.Image)
			assert.True(t, app.Running)
		}
	}
	assert.True(t, found)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	path := writeDeploymentFile(t, dir, sampleYAML)
	require.NoError(t, s.Apply(path))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Current().Equal(s.Current()))
}

func TestStoreOpenWithNoPriorStateIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.Current().Nodes)
}

func TestStoreApplyRejectsUnsupportedKind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	path := writeDeploymentFile(t, dir, "apiVersion: vessel/v1\nkind: Pod\nnodes: []\n")
	err = s.Apply(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported kind")
}

func TestStoreApplyRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	path := writeDeploymentFile(t, dir, "nodes: [this is not valid: yaml: at all")
	require.Error(t, s.Apply(path))
}

func TestStoreApplyRejectsInvalidNodeUUID(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	path := writeDeploymentFile(t, dir, "nodes:\n  - uuid: not-a-uuid\n    hostname: node-a\n")
	err = s.Apply(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid uuid")
}

func TestStoreDumpRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	path := writeDeploymentFile(t, dir, sampleYAML)
	require.NoError(t, s.Apply(path))

	dumped, err := s.Dump()
	require.NoError(t, err)

	roundtripPath := writeDeploymentFile(t, dir, string(dumped))
	reloaded, err := loadDeploymentFile(roundtripPath)
	require.NoError(t, err)
	assert.True(t, reloaded.Equal(s.Current()))
}
