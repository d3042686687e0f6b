package duck

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPianificatore_Duck_Result_Render(t *testing.T) {
	t.Parallel()

	t.Run("one line per row in engine order", func(t *testing.T) {
		t.Parallel()

		res := &Result{
			Columns: []Column{{Name: "user_id", Type: "INTEGER"}, {Name: "full_name", Type: "VARCHAR"}},
			Rows: [][]any{
				{int32(2), "Giulia Fabbri"},
				{int32(1), "Marco Rossi"},
			},
		}
		out := res.String()

		lines := strings.Split(strings.TrimSpace(out), "\n")
		var dataLines []string
		for _, l := range lines {
			if strings.HasPrefix(l, "|") && (strings.Contains(l, "Giulia") || strings.Contains(l, "Marco")) {
				dataLines = append(dataLines, l)
			}
		}
		require.Len(t, dataLines, 2)
		require.Contains(t, dataLines[0], "Giulia Fabbri")
		require.Contains(t, dataLines[1], "Marco Rossi")
		require.Contains(t, out, "user_id")
		require.Contains(t, out, "INTEGER")
		require.True(t, strings.HasSuffix(out, "(2 rows)\n"))
	})

	t.Run("no columns", func(t *testing.T) {
		t.Parallel()
		res := &Result{}
		require.Equal(t, "Statement executed successfully.\n", res.String())
	})

	t.Run("empty result keeps header", func(t *testing.T) {
		t.Parallel()
		res := &Result{Columns: []Column{{Name: "id", Type: "INTEGER"}}, Rows: [][]any{}}
		out := res.String()
		require.Contains(t, out, "id")
		require.True(t, strings.HasSuffix(out, "(0 rows)\n"))
	})

	t.Run("header names are escaped", func(t *testing.T) {
		t.Parallel()
		res := &Result{
			Columns: []Column{{Name: "a|b", Type: "INTEGER"}, {Name: "two\nlines", Type: "VARCHAR"}},
			Rows:    [][]any{{int32(1), nil}},
		}
		out := res.String()
		require.Contains(t, out, `a\|b`)
		require.Contains(t, out, `two\nlines`)
		require.NotContains(t, out, "two\nlines")
		require.Contains(t, out, `\N`)
	})

	t.Run("null and the string NULL differ", func(t *testing.T) {
		t.Parallel()
		res := &Result{
			Columns: []Column{{Name: "v", Type: "VARCHAR"}},
			Rows:    [][]any{{nil}, {"NULL"}},
		}
		var cells []string
		for _, l := range strings.Split(res.String(), "\n") {
			f := strings.TrimSpace(strings.Trim(strings.TrimSpace(l), "|"))
			if f == `\N` || f == "NULL" {
				cells = append(cells, f)
			}
		}
		require.Equal(t, []string{`\N`, "NULL"}, cells)
	})

	t.Run("single row label", func(t *testing.T) {
		t.Parallel()
		res := &Result{Columns: []Column{{Name: "n"}}, Rows: [][]any{{int64(1)}}}
		require.True(t, strings.HasSuffix(res.String(), "(1 row)\n"))
	})
}

func TestPianificatore_Duck_FormatValue(t *testing.T) {
	t.Parallel()

	require.Equal(t, `\N`, FormatValue(nil))
	require.Equal(t, "NULL", FormatValue("NULL"))
	require.Equal(t, `\\N`, FormatValue(`\N`))
	require.NotEqual(t, FormatValue(nil), FormatValue("NULL"))
	require.Equal(t, "42", FormatValue(int64(42)))
	require.Equal(t, "10.5", FormatValue(10.5))
	require.Equal(t, "true", FormatValue(true))
	require.Equal(t, `line one\nline two`, FormatValue("line one\nline two"))
	require.Equal(t, `a\|b`, FormatValue("a|b"))
	require.Equal(t, `\x0aff`, FormatValue([]byte{0x0a, 0xff}))
	require.Equal(t, "2025-10-01T08:00:00Z", FormatValue(time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)))
}
