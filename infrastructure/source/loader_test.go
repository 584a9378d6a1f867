package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/smartsense/smartsense/domain/property"
)

func TestLoader_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.csv")
	content := "\ufeff Property_ID ,Title,Price,Certificates\n" +
		"P1,Flat,100000,a.pdf|b.pdf\n" +
		",,,\n" +
		"P2,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Index())
	assert.Equal(t, "P1", rows[0].Get(property.ColumnPropertyID))
	assert.Equal(t, "a.pdf|b.pdf", rows[0].Get(property.ColumnCertificates))

	assert.Equal(t, 3, rows[1].Index())
	assert.False(t, rows[1].Has(property.ColumnTitle))
	assert.False(t, rows[1].Has(property.ColumnPrice))
}

func TestLoader_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Property_list.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"property_id", "TITLE", "price", "image_file"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"P1", "Loft", 250000, "p1.png"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"P2", "", nil, ""}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Loft", rows[0].Get(property.ColumnTitle))
	assert.Equal(t, "250000", rows[0].Get(property.ColumnPrice))
	assert.Equal(t, "p1.png", rows[0].Get(property.ColumnImageFile))

	assert.Equal(t, "P2", rows[1].Get(property.ColumnPropertyID))
	assert.False(t, rows[1].Has(property.ColumnTitle))
	assert.False(t, rows[1].Has(property.ColumnPrice))
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader().Load(context.Background(), filepath.Join(dir, "missing.xlsx"))
	assert.ErrorIs(t, err, ErrSourceMissing)

	odd := filepath.Join(dir, "rows.json")
	require.NoError(t, os.WriteFile(odd, []byte("[]"), 0o644))
	_, err = NewLoader().Load(context.Background(), odd)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	broken := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o644))
	_, err = NewLoader().Load(context.Background(), broken)
	assert.Error(t, err)
}

func TestLoader_EmptyCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	rows, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
