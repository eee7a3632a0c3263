package collection

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/pkg/models"
)

type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Load() ([]models.PlaylistCollection, error) {
	args := m.Called()
	collections, _ := args.Get(0).([]models.PlaylistCollection)
	return collections, args.Error(1)
}

func (m *MockPersister) Save(collections []models.PlaylistCollection) error {
	args := m.Called(collections)
	return args.Error(0)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(NewFilePersister(dir, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	id := store.CreateCollection("Rock Hits", models.VisibilityPersonal)

	c, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Rock Hits", c.Name)
	assert.Equal(t, models.VisibilityPersonal, c.Visibility)
	assert.Empty(t, c.Songs)
	assert.NotZero(t, c.CreatedAt)
}

func TestUnknownCollection(t *testing.T) {
	store, _ := newTestStore(t)

	assert.False(t, store.DeleteCollection("missing"))
	assert.False(t, store.RenameCollection("missing", "x"))
	assert.False(t, store.SetVisibility("missing", models.VisibilityPublic))
	assert.False(t, store.AddToCollection("missing", models.Song{ID: "s"}))
	assert.False(t, store.RemoveFromCollection("missing", "s"))
	_, ok := store.CopyForQueue("missing", "s")
	assert.False(t, ok)
	_, err := store.ExportCollection("missing")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestSongMembership(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.CreateCollection("Mix", models.VisibilityPublic)

	require.True(t, store.AddToCollection(id, models.Song{ID: "s1", Title: "One", AddedAt: 1}))
	assert.False(t, store.RemoveFromCollection(id, "nope"))

	copied, ok := store.CopyForQueue(id, "s1")
	require.True(t, ok)
	assert.NotEqual(t, "s1", copied.ID)
	assert.Equal(t, "One", copied.Title)
	assert.NotEqual(t, int64(1), copied.AddedAt)

	c, _ := store.Get(id)
	require.Len(t, c.Songs, 1)
	assert.Equal(t, "s1", c.Songs[0].ID, "copying leaves the template untouched")

	assert.True(t, store.RemoveFromCollection(id, "s1"))
	c, _ = store.Get(id)
	assert.Empty(t, c.Songs)
}

func TestGetOrCreateDefaultCollection(t *testing.T) {
	store, _ := newTestStore(t)

	id := store.GetOrCreateDefaultCollection()
	c, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, DefaultCollectionName, c.Name)
	assert.Equal(t, models.VisibilityPublic, c.Visibility)

	store.CreateCollection("Second", models.VisibilityPublic)
	assert.Equal(t, id, store.GetOrCreateDefaultCollection())
	assert.Len(t, store.All(), 2)
}

func TestImportNameCollision(t *testing.T) {
	store, _ := newTestStore(t)
	orig := store.CreateCollection("Rock Hits", models.VisibilityPublic)
	data, err := store.ExportCollection(orig)
	require.NoError(t, err)

	_, err = store.ImportCollection(data)
	require.NoError(t, err)
	_, err = store.ImportCollection(data)
	require.NoError(t, err)

	var names []string
	for _, c := range store.All() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Rock Hits", "Rock Hits (Imported)", "Rock Hits (Imported 2)"}, names)
}

func TestExportImportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.CreateCollection("Duets", models.VisibilityPersonal)
	store.AddToCollection(id, models.Song{ID: "a", SourceID: "dQw4w9WgXcQ", Title: "A"})
	store.AddToCollection(id, models.Song{ID: "b", SourceID: "9bZkp7q19f0", Title: "B"})

	data, err := store.ExportCollection(id)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, FormatTag, env.FormatTag)

	other, _ := newTestStore(t)
	newID, err := other.ImportCollection(data)
	require.NoError(t, err)

	imported, ok := other.Get(newID)
	require.True(t, ok)
	assert.Equal(t, "Duets", imported.Name)
	assert.Equal(t, models.VisibilityPersonal, imported.Visibility)
	require.Len(t, imported.Songs, 2)
	assert.NotEqual(t, "a", imported.Songs[0].ID)
	assert.NotEqual(t, "b", imported.Songs[1].ID)
	assert.Equal(t, "dQw4w9WgXcQ", imported.Songs[0].SourceID)
}

func TestImportMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing collection", `{"formatTag":"1.0"}`},
		{"empty name", `{"formatTag":"1.0","collection":{"name":"","songs":[]}}`},
		{"unknown format", `{"formatTag":"2.0","collection":{"name":"x","songs":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			_, err := store.ImportCollection([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedImport)
			assert.Empty(t, store.All())
		})
	}
}

func TestImportDefaultsToPublic(t *testing.T) {
	store, _ := newTestStore(t)

	id, err := store.ImportCollection([]byte(`{"formatTag":"1.0","collection":{"name":"x"}}`))
	require.NoError(t, err)

	c, _ := store.Get(id)
	assert.Equal(t, models.VisibilityPublic, c.Visibility)
	assert.NotNil(t, c.Songs)
}

func TestWriteThrough(t *testing.T) {
	store, dir := newTestStore(t)
	id := store.CreateCollection("Saved", models.VisibilityPublic)
	store.AddToCollection(id, models.Song{ID: "s1", Title: "One"})
	store.RenameCollection(id, "Renamed")

	reloaded, err := NewStore(NewFilePersister(dir, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	all := reloaded.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Renamed", all[0].Name)
	require.Len(t, all[0].Songs, 1)
	assert.Equal(t, "s1", all[0].Songs[0].ID)
}

func TestLegacyUpgrade(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id":"s1","sourceId":"dQw4w9WgXcQ","title":"Old","artist":"A","duration":212}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, legacyFile), []byte(legacy), 0o644))

	store, err := NewStore(NewFilePersister(dir, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, DefaultCollectionName, all[0].Name)
	assert.Equal(t, models.VisibilityPublic, all[0].Visibility)
	require.Len(t, all[0].Songs, 1)
	assert.Equal(t, "Old", all[0].Songs[0].Title)

	_, err = os.Stat(filepath.Join(dir, collectionsFile))
	assert.NoError(t, err, "upgrade writes the current format")
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	p := new(MockPersister)
	p.On("Load").Return([]models.PlaylistCollection{}, nil)
	p.On("Save", mock.Anything).Return(errors.New("disk full"))

	store, err := NewStore(p, zap.NewNop())
	require.NoError(t, err)

	id := store.CreateCollection("Kept", models.VisibilityPublic)

	_, ok := store.Get(id)
	assert.True(t, ok)
	p.AssertNumberOfCalls(t, "Save", 1)
}

func TestLoadFailure(t *testing.T) {
	p := new(MockPersister)
	p.On("Load").Return(nil, errors.New("corrupt"))

	_, err := NewStore(p, zap.NewNop())
	assert.Error(t, err)
}

func TestAllIsDeepCopy(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.CreateCollection("Mix", models.VisibilityPublic)
	store.AddToCollection(id, models.Song{ID: "s1", Title: "One"})

	all := store.All()
	all[0].Songs[0].Title = "changed"

	c, _ := store.Get(id)
	assert.Equal(t, "One", c.Songs[0].Title)
}
