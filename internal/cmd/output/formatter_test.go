package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickResult struct {
	Tick     int    `json:"tick"`
	DataDir  string `json:"data_dir"`
	internal bool
}

type statusRows []string

func (s statusRows) Table() Data {
	d := Data{Headers: []string{"Region"}}
	for _, r := range s {
		d.Rows = append(d.Rows, []string{r})
	}
	return d
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, tickResult{Tick: 61, DataDir: "data"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(61), got["tick"])
	assert.Equal(t, "data", got["data_dir"])
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, map[string]int{"tick": 61}))
	assert.Equal(t, "tick: 61\n", buf.String())
}

func TestTableFormatter(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewFormatter(FormatTable).Format(&buf, Data{
			Headers:         []string{"Region", "Alerts"},
			Rows:            [][]string{{"pc", "12"}, {"ps4", "7"}},
			ColumnAlignment: []Align{AlignLeft, AlignRight},
		})
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, strings.ToLower(out), "region")
		assert.Contains(t, out, "pc")
		assert.Contains(t, out, "12")
		assert.Contains(t, out, "ps4")
	})

	t.Run("tabular", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, statusRows{"xbox", "china"}))
		assert.Contains(t, buf.String(), "xbox")
		assert.Contains(t, buf.String(), "china")
	})

	t.Run("struct", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, &tickResult{Tick: 3, DataDir: "/srv"}))
		out := buf.String()
		assert.Contains(t, out, "Data Dir")
		assert.Contains(t, out, "/srv")
		assert.NotContains(t, out, "internal")
	})

	t.Run("fallback to json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, []int{1, 2}))
		assert.JSONEq(t, "[1,2]", buf.String())
	})
}
