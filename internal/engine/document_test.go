package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPath(t *testing.T) {
	doc := map[string]any{}

	require.NoError(t, setPath(doc, "claim.total", "100.50"))
	require.NoError(t, setPath(doc, "claim.patient.last", "DOE"))
	require.NoError(t, setPath(doc, "control", "0001"))

	assert.Equal(t, map[string]any{
		"control": "0001",
		"claim": map[string]any{
			"total": "100.50",
			"patient": map[string]any{
				"last": "DOE",
			},
		},
	}, doc)
}

func TestSetPath_LeafOverwriteAllowed(t *testing.T) {
	doc := map[string]any{}
	require.NoError(t, setPath(doc, "a", "1"))
	require.NoError(t, setPath(doc, "a", "2"))
	assert.Equal(t, "2", doc["a"])
}

func TestSetPath_Conflicts(t *testing.T) {
	t.Run("leaf blocking an intermediate", func(t *testing.T) {
		doc := map[string]any{}
		require.NoError(t, setPath(doc, "a", "leaf"))
		err := setPath(doc, "a.b", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-object")
	})

	t.Run("leaf replacing structured output", func(t *testing.T) {
		doc := map[string]any{}
		require.NoError(t, setPath(doc, "a.b", "x"))
		err := setPath(doc, "a", "leaf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "structured")
	})
}

func TestAppendToArray(t *testing.T) {
	doc := map[string]any{}

	require.NoError(t, appendToArray(doc, "claims", map[string]any{"id": "1"}))
	require.NoError(t, appendToArray(doc, "claims", map[string]any{"id": "2"}))

	arr, ok := doc["claims"].([]any)
	require.True(t, ok)
	require.Len(t, arr, 2)
	assert.Equal(t, map[string]any{"id": "2"}, arr[1])

	doc["busy"] = "leaf"
	assert.Error(t, appendToArray(doc, "busy", "x"))
}

func TestMergeObject(t *testing.T) {
	dst := map[string]any{
		"name": map[string]any{"last": "DOE"},
		"refs": []any{"a"},
		"kept": "yes",
	}
	src := map[string]any{
		"name": map[string]any{"first": "JANE"},
		"refs": []any{"b"},
		"new":  "value",
	}

	mergeObject(dst, src)

	assert.Equal(t, map[string]any{
		"name": map[string]any{"last": "DOE", "first": "JANE"},
		"refs": []any{"a", "b"},
		"kept": "yes",
		"new":  "value",
	}, dst)
}

func TestMergeObject_LeafConflictSrcWins(t *testing.T) {
	dst := map[string]any{"a": "old"}
	mergeObject(dst, map[string]any{"a": "new"})
	assert.Equal(t, "new", dst["a"])
}

func TestEnsurePath(t *testing.T) {
	doc := map[string]any{}

	obj, err := ensurePath(doc, "envelope.submitter")
	require.NoError(t, err)
	obj["name"] = "ACME"

	assert.Equal(t, map[string]any{
		"envelope": map[string]any{
			"submitter": map[string]any{"name": "ACME"},
		},
	}, doc)

	same, err := ensurePath(doc, "envelope.submitter")
	require.NoError(t, err)
	assert.Equal(t, obj, same)

	root, err := ensurePath(doc, "")
	require.NoError(t, err)
	assert.Equal(t, doc, root)
}
