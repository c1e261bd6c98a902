package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// TestFromCty_ReplicateSemantics verifies the two replication rules: whole
// number scalars scale by the factor, sequences tile.
func TestFromCty_ReplicateSemantics(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	values := cty.ObjectVal(map[string]cty.Value{
		"J": cty.NumberIntVal(8),
		"y": cty.TupleVal([]cty.Value{
			cty.NumberIntVal(28), cty.NumberIntVal(8), cty.NumberIntVal(-3),
		}),
		"scale": cty.NumberFloatVal(2.5),
	})

	// --- Act ---
	data, err := fromCty(values, 100)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, int64(800), data["J"])
	require.Equal(t, 2.5, data["scale"], "real scalars pass through unreplicated")

	y, ok := data["y"].([]float64)
	require.True(t, ok)
	require.Len(t, y, 300)
	require.Equal(t, []float64{28, 8, -3}, y[:3])
	require.Equal(t, []float64{28, 8, -3}, y[297:])
}

// TestFromCty_NoReplication verifies a factor of one leaves everything
// untouched.
func TestFromCty_NoReplication(t *testing.T) {
	t.Parallel()

	values := cty.ObjectVal(map[string]cty.Value{
		"J": cty.NumberIntVal(8),
		"y": cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
	})

	data, err := fromCty(values, 1)

	require.NoError(t, err)
	require.Equal(t, int64(8), data["J"])
	require.Equal(t, []float64{1, 2}, data["y"])
}

// TestFromCty_RejectsNonNumericValues verifies strings and nested
// structures are refused; the data model is scalars and flat sequences only.
func TestFromCty_RejectsNonNumericValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		values cty.Value
	}{
		{
			name:   "string field",
			values: cty.ObjectVal(map[string]cty.Value{"label": cty.StringVal("schools")}),
		},
		{
			name: "string element",
			values: cty.ObjectVal(map[string]cty.Value{
				"y": cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("two")}),
			}),
		},
		{
			name: "nested list",
			values: cty.ObjectVal(map[string]cty.Value{
				"m": cty.TupleVal([]cty.Value{cty.TupleVal([]cty.Value{cty.NumberIntVal(1)})}),
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := fromCty(tc.values, 1)
			require.Error(t, err)
		})
	}
}

// TestFromFile_JSON verifies loading and replicating a JSON dataset file.
func TestFromFile_JSON(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "schools.json")
	content := `{"J": 8, "y": [28, 8, -3, 7, -1, 1, 18, 12], "sigma": [15, 10, 16, 11, 9, 11, 10, 18]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	// --- Act ---
	data, err := fromFile(path, 100)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, int64(800), data["J"])
	require.Len(t, data["y"], 800)
	require.Len(t, data["sigma"], 800)
}

// TestFromFile_YAML verifies the YAML branch, chosen by extension.
func TestFromFile_YAML(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "schools.yaml")
	content := "J: 8\ny: [28, 8, -3]\nsigma: [15, 10, 16]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	// --- Act ---
	data, err := fromFile(path, 2)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, int64(16), data["J"])
	require.Equal(t, []float64{28, 8, -3, 28, 8, -3}, data["y"])
}

// TestFromFile_Errors covers the failure paths of dataset file loading.
func TestFromFile_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "schools.toml")
		require.NoError(t, os.WriteFile(path, []byte("J = 8"), 0600))
		_, err := fromFile(path, 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported data file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := fromFile(filepath.Join(t.TempDir(), "nope.json"), 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to read data file")
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"J": `), 0600))
		_, err := fromFile(path, 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to parse JSON")
	})

	t.Run("non numeric field", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"label": "schools"}`), 0600))
		_, err := fromFile(path, 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), `data field "label"`)
	})
}
