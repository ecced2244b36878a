package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Title:    "Asistencia",
		Subtitle: "2024-01-01 – 2024-03-31",
		Tables: []Table{
			{Title: "Serie", Headers: []string{"label", "attendance"}, Rows: [][]string{{"2024-01", "2"}, {"2024-02", "1"}}},
			{Title: "Por grupo", Headers: []string{"group", "unique_people"}, Rows: [][]string{{"Génesis", "2"}}},
		},
	}
}

func TestCSVRendererWritesSections(t *testing.T) {
	data, err := NewCSVRenderer().Render(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Serie\nlabel,attendance\n2024-01,2\n2024-02,1\n\nPor grupo\ngroup,unique_people\nGénesis,2\n", string(data))
}

func TestPDFRendererProducesDocument(t *testing.T) {
	data, err := NewPDFRenderer().Render(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderersRejectMalformedTables(t *testing.T) {
	bad := Report{Tables: []Table{{Headers: []string{"a", "b"}, Rows: [][]string{{"1"}}}}}
	_, err := NewCSVRenderer().Render(bad)
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render(Report{})
	assert.Error(t, err)
}
