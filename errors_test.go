package odm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odm "github.com/ramzitannous/mongo-odm"
)

func TestIssuesErrorSummary(t *testing.T) {
	iss := odm.Issues{
		{Path: "/name", Code: odm.CodeRequired},
		{Path: "/age", Code: odm.CodeInvalidType},
	}
	assert.Equal(t, "required at /name; invalid_type at /age", iss.Error())
}

func TestIssuesErrorTruncates(t *testing.T) {
	iss := odm.Issues{
		{Path: "/a", Code: odm.CodeRequired},
		{Path: "/b", Code: odm.CodeRequired},
		{Path: "/c", Code: odm.CodeRequired},
		{Path: "/d", Code: odm.CodeRequired},
		{Path: "/e", Code: odm.CodeRequired},
	}
	msg := iss.Error()
	assert.Contains(t, msg, "required at /c")
	assert.NotContains(t, msg, "/d")
	assert.Contains(t, msg, "(total 5)")
}

func TestAsIssuesThroughSentinel(t *testing.T) {
	sch := odm.NewRegistry().MustRegister("ErrProbe",
		odm.Field("age", odm.Int()).Required(),
	)
	doc := sch.New()
	err := doc.Set("age", "ten")
	require.Error(t, err)
	assert.ErrorIs(t, err, odm.ErrValidation)

	iss, ok := odm.AsIssues(err)
	require.True(t, ok)
	require.Len(t, iss, 1)
	assert.Equal(t, "/age", iss[0].Path)
	assert.Equal(t, odm.CodeInvalidType, iss[0].Code)
}

func TestAsIssuesNil(t *testing.T) {
	_, ok := odm.AsIssues(nil)
	assert.False(t, ok)
}

func TestAsIssuesPlainError(t *testing.T) {
	_, ok := odm.AsIssues(assert.AnError)
	assert.False(t, ok)
}
