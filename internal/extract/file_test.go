package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func collect(t *testing.T, e Extractor) ([]RawSnapshot, []error) {
	t.Helper()
	seq, err := e.Extract(context.Background())
	require.NoError(t, err)
	var snaps []RawSnapshot
	var errs []error
	for raw, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snaps = append(snaps, raw)
	}
	return snaps, errs
}

func TestFileExtractor_YAMLSequence(t *testing.T) {
	path := writeFile(t, "listings.yaml", `
- url: https://portal.example/inmueble/1
  price: 450.000 €
  street: Calle Mayor 1
  images: [https://img.example/1.jpg]
- url: https://portal.example/inmueble/2
  price: 299000
  street: Avenida del Mar 4
`)
	snaps, errs := collect(t, NewFileExtractor(path))
	assert.Empty(t, errs)
	require.Len(t, snaps, 2)
	assert.Equal(t, "https://portal.example/inmueble/1", snaps[0].URL)
	assert.Equal(t, Loose("299000"), snaps[1].Price)
}

func TestFileExtractor_JSONItems(t *testing.T) {
	path := writeFile(t, "listings.json", `{"items": [
  {"url": "https://portal.example/inmueble/1", "street": "Calle Mayor 1", "price": 450000},
  {"url": "https://portal.example/inmueble/2", "street": "Calle Nueva 2", "price": {"bad": true}},
  {"url": "https://portal.example/inmueble/3", "street": "Calle Vieja 3"}
  ]}`)
	snaps, errs := collect(t, NewFileExtractor(path))
	require.Len(t, snaps, 2)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "item 1")
}

func TestFileExtractor_Errors(t *testing.T) {
	_, err := NewFileExtractor(filepath.Join(t.TempDir(), "missing.yaml")).Extract(context.Background())
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "listings:\n  - url: x\n")
	_, err = NewFileExtractor(path).Extract(context.Background())
	assert.Error(t, err)

	path = writeFile(t, "scalar.yaml", "just text")
	_, err = NewFileExtractor(path).Extract(context.Background())
	assert.Error(t, err)
}

func TestFileExtractor_Empty(t *testing.T) {
	snaps, errs := collect(t, NewFileExtractor(writeFile(t, "empty.yaml", "")))
	assert.Empty(t, snaps)
	assert.Empty(t, errs)
}
