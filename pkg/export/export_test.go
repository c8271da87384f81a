package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	body, err := NewCSVExporter(0).Render(Table{
		Columns: []string{"Nom", "Prenom"},
		Rows:    [][]string{{"Dupont", "Jean"}, {"Lefèvre; fils", "Émile"}},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("\ufeff")))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff")), "\n")
	assert.Equal(t, []string{"Nom;Prenom", "Dupont;Jean", `"Lefèvre; fils";Émile`}, lines)
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	_, err := NewCSVExporter(',').Render(Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}})
	assert.Error(t, err)

	_, err = NewCSVExporter(',').Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	body, err := NewPDFExporter().Render(Table{
		Title:   "Emploi du temps - Élodie Durand - 2025-2026",
		Columns: []string{"Jour", "Debut"},
		Rows:    [][]string{{"Lundi", "08:00"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	empty, err := NewPDFExporter().Render(Table{Columns: []string{"Jour"}})
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}
