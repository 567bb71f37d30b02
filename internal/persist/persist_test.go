package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapd/internal/core"
	"zapd/internal/merkle"
)

var testKey = [32]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}

func sampleTables() []TableSnapshot {
	rows := []core.Row{
		{"id": core.NewInteger(1), "name": core.NewString("Alice")},
		{"id": core.NewInteger(2), "name": core.NewString("Bob"), "bio": core.Null},
	}
	return []TableSnapshot{
		{
			Name: "users",
			Columns: []core.Column{
				{Name: "id", Type: core.TypeInteger, Constraints: []core.Constraint{core.NotNull(), core.Unique()}},
				{Name: "name", Type: core.TypeString},
				{Name: "bio", Type: core.TypeString},
			},
			Rows:       rows,
			Indexes:    []string{"id"},
			MerkleRoot: merkle.RootOf(rows),
		},
		{
			Name: "posts",
			Columns: []core.Column{
				{Name: "user_id", Type: core.TypeInteger, Constraints: []core.Constraint{core.ForeignKey("users", "id")}},
			},
			Rows:       nil,
			MerkleRoot: merkle.RootOf(nil),
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tables := sampleTables()
	decoded, err := Decode(Encode(tables))
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	users := decoded[0]
	assert.Equal(t, "users", users.Name)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, core.TypeInteger, users.Columns[0].Type)
	require.Len(t, users.Columns[0].Constraints, 2)
	assert.Equal(t, []string{"id"}, users.Indexes)
	assert.Equal(t, tables[0].MerkleRoot, users.MerkleRoot)
	require.Len(t, users.Rows, 2)
	assert.True(t, users.Rows[0].Get("name").Equal(core.NewString("Alice")))
	assert.True(t, users.Rows[1].Get("bio").IsNull())

	posts := decoded[1]
	assert.Equal(t, "posts", posts.Name)
	fk, ok := posts.Columns[0].ForeignKeyConstraint()
	require.True(t, ok)
	assert.Equal(t, "users", fk.RefTable)
	assert.Equal(t, "id", fk.RefColumn)
}

func TestDecodeTruncated(t *testing.T) {
	data := Encode(sampleTables())
	_, err := Decode(data[:len(data)-10])
	var deser *core.DeserializationFailedError
	require.ErrorAs(t, err, &deser)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	loaded, err := Load(path, testKey)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "users", loaded[0].Name)
	assert.Len(t, loaded[0].Rows, 2)
}

func TestSnapshotHeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 4+1+nonceSize)
	assert.Equal(t, "ZAPD", string(data[:4]))
	assert.Equal(t, formatVersion, data[4])
}

func TestLoadWrongKeyFailsAuthentication(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	otherKey := testKey
	otherKey[0] ^= 0xFF
	_, err := Load(path, otherKey)
	var auth *core.AuthenticationFailedError
	require.ErrorAs(t, err, &auth)
}

func TestLoadTamperedCiphertextFailsAuthentication(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path, testKey)
	var auth *core.AuthenticationFailedError
	require.ErrorAs(t, err, &auth)
}

func TestLoadBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data[:4], "NOPE")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path, testKey)
	var magic *core.BadMagicError
	require.ErrorAs(t, err, &magic)
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.zap")
	require.NoError(t, Save(path, testKey, sampleTables()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4] = 0x7F
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path, testKey)
	var version *core.VersionMismatchError
	require.ErrorAs(t, err, &version)
	assert.Equal(t, byte(0x7F), version.Got)
}

func TestLoadTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.zap")
	require.NoError(t, os.WriteFile(path, []byte("ZAP"), 0o600))

	_, err := Load(path, testKey)
	var format *core.BadFormatError
	require.ErrorAs(t, err, &format)
}

func TestLoadMissingFileIsIOError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.zap"), testKey)
	var ioErr *core.IOError
	require.ErrorAs(t, err, &ioErr)
}
