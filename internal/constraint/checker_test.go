package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapd/internal/core"
	"zapd/internal/table"
)

// harness wires a two-table database view: users(id unique notnull, name)
// and posts(user_id -> users.id).
type harness struct {
	users *table.Table
	posts *table.Table
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	users, err := table.New("users", []core.Column{
		{Name: "id", Type: core.TypeInteger, Constraints: []core.Constraint{core.NotNull(), core.Unique()}},
		{Name: "name", Type: core.TypeString},
	})
	require.NoError(t, err)
	posts, err := table.New("posts", []core.Column{
		{Name: "user_id", Type: core.TypeInteger, Constraints: []core.Constraint{core.ForeignKey("users", "id")}},
		{Name: "title", Type: core.TypeString},
	})
	require.NoError(t, err)
	return &harness{users: users, posts: posts}
}

func (h *harness) lookup(name string) (*table.Table, bool) {
	switch name {
	case "users":
		return h.users, true
	case "posts":
		return h.posts, true
	default:
		return nil, false
	}
}

func TestValidateInsertOK(t *testing.T) {
	h := newHarness(t)
	err := ValidateInsert(h.lookup, h.users, core.Row{
		"id":   core.NewInteger(1),
		"name": core.NewString("Alice"),
	})
	assert.NoError(t, err)
}

func TestNotNullViolation(t *testing.T) {
	h := newHarness(t)

	err := ValidateInsert(h.lookup, h.users, core.Row{"name": core.NewString("Alice")})
	var notNull *core.NotNullViolationError
	require.ErrorAs(t, err, &notNull)
	assert.Equal(t, "id", notNull.Column)

	err = ValidateInsert(h.lookup, h.users, core.Row{"id": core.Null})
	require.ErrorAs(t, err, &notNull)
}

func TestUniqueViolation(t *testing.T) {
	h := newHarness(t)
	h.users.Insert(core.Row{"id": core.NewInteger(1)})

	err := ValidateInsert(h.lookup, h.users, core.Row{"id": core.NewInteger(1)})
	var unique *core.UniqueViolationError
	require.ErrorAs(t, err, &unique)
	assert.Equal(t, "id", unique.Column)

	assert.NoError(t, ValidateInsert(h.lookup, h.users, core.Row{"id": core.NewInteger(2)}))
}

func TestForeignKeyViolation(t *testing.T) {
	h := newHarness(t)
	h.users.Insert(core.Row{"id": core.NewInteger(1)})

	assert.NoError(t, ValidateInsert(h.lookup, h.posts, core.Row{
		"user_id": core.NewInteger(1),
		"title":   core.NewString("p"),
	}))

	err := ValidateInsert(h.lookup, h.posts, core.Row{"user_id": core.NewInteger(7)})
	var fk *core.ForeignKeyViolationError
	require.ErrorAs(t, err, &fk)
	assert.Equal(t, "user_id", fk.Column)
	assert.Equal(t, "users", fk.RefTable)

	// Null passes a foreign key.
	assert.NoError(t, ValidateInsert(h.lookup, h.posts, core.Row{"title": core.NewString("orphan")}))
}

func TestTypeMismatch(t *testing.T) {
	h := newHarness(t)
	err := ValidateInsert(h.lookup, h.users, core.Row{"id": core.NewString("one")})
	var mismatch *core.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "id", mismatch.Column)
}

func TestUndeclaredColumnRejected(t *testing.T) {
	h := newHarness(t)
	err := ValidateInsert(h.lookup, h.users, core.Row{
		"id":  core.NewInteger(1),
		"age": core.NewInteger(30),
	})
	var noCol *core.NoSuchColumnError
	require.ErrorAs(t, err, &noCol)
	assert.Equal(t, "age", noCol.Column)
}

func TestValidateMutation(t *testing.T) {
	h := newHarness(t)
	h.users.Insert(core.Row{"id": core.NewInteger(1), "name": core.NewString("Alice")})
	h.users.Insert(core.Row{"id": core.NewInteger(2), "name": core.NewString("Bob")})

	newName := core.NewString("Alicia")
	next, err := ValidateMutation(h.lookup, h.users, 0, table.Mutation{"name": &newName})
	require.NoError(t, err)
	assert.True(t, next.Get("name").Equal(newName))

	// Mutating a row's unique column onto an existing value is a violation;
	// re-asserting its own value is not.
	dup := core.NewInteger(2)
	_, err = ValidateMutation(h.lookup, h.users, 0, table.Mutation{"id": &dup})
	var unique *core.UniqueViolationError
	require.ErrorAs(t, err, &unique)

	same := core.NewInteger(1)
	_, err = ValidateMutation(h.lookup, h.users, 0, table.Mutation{"id": &same})
	assert.NoError(t, err)

	// Deleting a NotNull column's key is a violation.
	_, err = ValidateMutation(h.lookup, h.users, 0, table.Mutation{"id": nil})
	var notNull *core.NotNullViolationError
	require.ErrorAs(t, err, &notNull)
}

func TestForeignKeyToMissingTable(t *testing.T) {
	orphan, err := table.New("orphans", []core.Column{
		{Name: "ref", Type: core.TypeInteger, Constraints: []core.Constraint{core.ForeignKey("ghosts", "id")}},
	})
	require.NoError(t, err)

	lookup := func(string) (*table.Table, bool) { return nil, false }
	insErr := ValidateInsert(lookup, orphan, core.Row{"ref": core.NewInteger(1)})
	var noTable *core.NoSuchTableError
	require.ErrorAs(t, insErr, &noTable)
	assert.Equal(t, "ghosts", noTable.Table)
}
