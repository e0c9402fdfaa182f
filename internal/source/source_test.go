package source

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = `PTFLOW exercises,,,
revision 7,,,
,,,
id,priority,name,description1
0001,1,Knebøy,"Stå med beina,
skulderbredde"
0002,3,Utfall
,,,
0003,2,Planke,,,,Kroppsvekt
`

func writeSheet(t *testing.T, content string) *CSVFile {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "exercises.csv", []byte(content), 0644))
	return NewCSVFile(fs, "exercises.csv")
}

func TestCSVFileRows(t *testing.T) {
	rows, err := writeSheet(t, sheet).Rows(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"0001", "1", "Knebøy", "Stå med beina,\nskulderbredde"}, rows[0])
	assert.Equal(t, []string{"0002", "3", "Utfall"}, rows[1])
	assert.Equal(t, "Kroppsvekt", rows[2][6])
}

func TestCSVFileSkipRows(t *testing.T) {
	c := writeSheet(t, "\ufeff0001,1,A\n0002,1,B\n")
	c.SkipRows = 0

	rows, err := c.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0001", rows[0][0])
}

func TestCSVFileSemicolon(t *testing.T) {
	c := writeSheet(t, "0001;1;Knebøy\n")
	c.SkipRows = 0
	c.Comma = ';'

	rows, err := c.Rows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0001", "1", "Knebøy"}}, rows)
}

func TestCSVFileErrors(t *testing.T) {
	c := NewCSVFile(memfs.New(), "missing.csv")
	_, err := c.Rows(context.Background())
	assert.Error(t, err)

	c = writeSheet(t, "0001,\"unterminated\n")
	c.SkipRows = 0
	_, err = c.Rows(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = writeSheet(t, sheet).Rows(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatic(t *testing.T) {
	rows, err := Static{{"0001"}, {"0002"}}.Rows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Static{{"0001"}}.Rows(ctx)
	assert.Error(t, err)
}
