package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRoundTrip(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"USER_ID", "POZNAMKY"},
		Rows: []map[string]string{
			{"USER_ID": "u1", "POZNAMKY": "dobrý, \"výborný\""},
			{"USER_ID": "u2"},
		},
	}

	payload, err := exporter.Render(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "USER_ID,POZNAMKY\n"))

	parsed, err := exporter.Parse(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, data.Headers, parsed.Headers)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, "dobrý, \"výborný\"", parsed.Rows[0]["POZNAMKY"])
	assert.Equal(t, "", parsed.Rows[1]["POZNAMKY"])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVParseStripsBOMAndShortRows(t *testing.T) {
	input := "\ufeffUSER_ID,YEAR,EVALUATION\nu1,2024\n"
	parsed, err := NewCSVExporter().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "USER_ID", parsed.Headers[0])
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, map[string]string{"USER_ID": "u1", "YEAR": "2024"}, parsed.Rows[0])

	empty, err := NewCSVExporter().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Headers)

	_, err = NewCSVExporter().Parse(strings.NewReader("A\n\"broken\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	section := Section{
		Title: "Souhrn 5x5",
		Data: Dataset{
			Headers: []string{"Kategorie", "Počet"},
			Rows:    []map[string]string{{"Kategorie": "Top", "Počet": "2"}},
		},
	}

	payload, err := exporter.Render("Kulaté stoly", section)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))

	_, err = exporter.Render("empty")
	assert.Error(t, err)

	_, err = exporter.Render("no headers", Section{Title: "x"})
	assert.ErrorContains(t, err, "no headers")
}
