package types

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemAccessors(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	item := NewItem("Post", map[string]any{
		"title":       "Hello",
		"publishDate": when,
		"author":      "u1",
		"tags":        []string{"t1", "t2"},
		"isDone":      true,
	})

	assert.Equal(t, "Hello", item.String("title"))
	assert.Equal(t, "", item.String("missing"))
	assert.True(t, item.Bool("isDone"))
	got, ok := item.Time("publishDate")
	assert.True(t, ok)
	assert.Equal(t, when, got)
	assert.Equal(t, []string{"u1"}, item.IDs("author"))
	assert.Equal(t, []string{"t1", "t2"}, item.IDs("tags"))
	assert.Nil(t, item.IDs("title_missing"))
}

func TestItemMarshalJSON(t *testing.T) {
	item := NewItem("User", map[string]any{
		"name":     "Ada",
		"password": PasswordState{IsSet: true},
	})
	item.ID = "abc"

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","name":"Ada","password":{"isSet":true}}`, string(data))
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, SessionFromContext(ctx))
	assert.False(t, IsSudo(ctx))

	s := NewSession("u1", true)
	ctx = WithSession(ctx, s)
	assert.Same(t, s, SessionFromContext(ctx))
	assert.True(t, IsSudo(Sudo(ctx)))
}

func TestValidationError(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.OrNil())

	verr.Add("User", "email", ErrRequired)
	verr.Add("User", "email", ErrDuplicate)
	err := verr.OrNil()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRequired)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "User.email: value is required")

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
}
