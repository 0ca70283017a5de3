package userapi

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchFromMapDeterministicOrder(t *testing.T) {
	patch := PatchFromMap(map[string]any{
		"username": "zed",
		"emails":   []any{"zed@example.com"},
		"aardvark": true,
	})

	require.Len(t, patch, 3)
	assert.Equal(t, "aardvark", patch[0].Path)
	assert.Equal(t, "emails", patch[1].Path)
	assert.Equal(t, "username", patch[2].Path)
}

func TestPatchValidateRejectsBadFields(t *testing.T) {
	cases := []struct {
		name  string
		patch Patch
		want  error
	}{
		{"userid is immutable", Patch{{Path: "userid", Value: "new-id"}}, ErrImmutableUserID},
		{"username must not be emptied", Patch{{Path: "username", Value: ""}}, ErrUsernameRequired},
		{"username must be a string", Patch{{Path: "username", Value: 42}}, ErrUsernameRequired},
		{"emails must not be emptied", Patch{{Path: "emails", Value: []any{}}}, ErrEmailsRequired},
		{"emails must be a list", Patch{{Path: "emails", Value: "solo@example.com"}}, ErrEmailsRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			assert.ErrorIs(t, err, tc.want)
		})
	}

	valid := Patch{
		{Path: "username", Value: "fine"},
		{Path: "emails", Value: []any{"fine@example.com"}},
		{Path: "private.pair", Value: map[string]any{"id": "x"}},
	}
	assert.NoError(t, valid.Validate())
}

func TestPatchApplySimpleFields(t *testing.T) {
	u := &User{Username: "old", Emails: []string{"old@example.com"}}

	patch := Patch{
		{Path: "username", Value: "new"},
		{Path: "emails", Value: []any{"new@example.com", "alt@example.com"}},
	}
	require.NoError(t, patch.applyTo(u))

	assert.Equal(t, "new", u.Username)
	assert.Equal(t, []string{"new@example.com", "alt@example.com"}, u.Emails)
}

func TestPatchApplyDottedPathsCreateIntermediates(t *testing.T) {
	u := &User{}

	patch := Patch{
		{Path: "private.meta.pair", Value: "v"},
		{Path: "extras.prefs.color", Value: "green"},
	}
	require.NoError(t, patch.applyTo(u))

	meta, ok := u.Private["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", meta["pair"])

	prefs, ok := u.Extras["prefs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "green", prefs["color"])
}

func TestPatchApplyNilRemovesEntry(t *testing.T) {
	u := &User{Private: map[string]any{"keep": 1, "drop": 2}}

	patch := Patch{{Path: "private.drop", Value: nil}}
	require.NoError(t, patch.applyTo(u))

	_, present := u.Private["drop"]
	assert.False(t, present)
	assert.Equal(t, 1, u.Private["keep"])
}

func TestPatchApplyUnknownTopLevelLandsInExtras(t *testing.T) {
	u := &User{}

	patch := Patch{{Path: "favoriteColor", Value: "blue"}}
	require.NoError(t, patch.applyTo(u))

	assert.Equal(t, "blue", u.Extras["favoriteColor"])
}

func TestPatchApplyDeleteFlag(t *testing.T) {
	u := &User{}

	stamp := "2026-08-29T10:00:00Z"
	require.NoError(t, Patch{{Path: "deleteflag", Value: stamp}}.applyTo(u))
	require.NotNil(t, u.DeleteFlag)
	want, _ := time.Parse(time.RFC3339, stamp)
	assert.True(t, u.DeleteFlag.Equal(want))

	require.NoError(t, Patch{{Path: "deleteflag", Value: nil}}.applyTo(u))
	assert.Nil(t, u.DeleteFlag)

	require.NoError(t, Patch{{Path: "deleteflag", Value: float64(1700000000000)}}.applyTo(u))
	require.NotNil(t, u.DeleteFlag)
	assert.Equal(t, int64(1700000000000), u.DeleteFlag.UnixMilli())

	err := Patch{{Path: "deleteflag", Value: "not-a-time"}}.applyTo(u)
	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, goerrors.CodeBadRequest, richErr.Code)
}

func TestPatchAccessors(t *testing.T) {
	patch := Patch{
		{Path: "username", Value: "new"},
		{Path: "emails", Value: []any{"new@example.com"}},
		{Path: "deleteflag", Value: nil},
	}

	assert.Equal(t, "new", patch.Username())
	assert.Equal(t, []string{"new@example.com"}, patch.Emails())
	assert.True(t, patch.TouchesDeleteFlag())

	assert.False(t, Patch{{Path: "username", Value: "x"}}.TouchesDeleteFlag())
}
