package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/loader"
)

func stubSource(failing ...string) imageSource {
	return func(ctx context.Context, url string, p loader.Priority) (string, []byte, error) {
		for _, f := range failing {
			if f == url {
				return "", nil, errors.New("origin returned 404")
			}
		}
		return "image/png", []byte("png:" + url), nil
	}
}

func TestFetchAllKeepsArgumentOrder(t *testing.T) {
	urls := []string{"https://a.test/1.png", "https://a.test/2", "https://a.test/3.png"}

	results, err := fetchAll(context.Background(), stubSource("https://a.test/2"), urls, loader.Normal, "", false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, u := range urls {
		assert.Equal(t, u, results[i].URL)
	}
	assert.Equal(t, "image/png", results[0].MediaType)
	assert.Equal(t, len("png:https://a.test/1.png"), results[0].Size)
	assert.Equal(t, "origin returned 404", results[1].Error)
	assert.Zero(t, results[1].Size)
}

func TestFetchAllFailFast(t *testing.T) {
	_, err := fetchAll(context.Background(), stubSource("https://a.test/bad.png"),
		[]string{"https://a.test/bad.png", "https://a.test/ok.png"}, loader.High, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://a.test/bad.png")
}

func TestFetchAllWritesFiles(t *testing.T) {
	dir := t.TempDir()

	results, err := fetchAll(context.Background(), stubSource(), []string{"https://a.test/img/cat.png?s=2"}, loader.Normal, dir, false)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "cat.png"), results[0].File)

	data, err := os.ReadFile(results[0].File)
	require.NoError(t, err)
	assert.Equal(t, "png:https://a.test/img/cat.png?s=2", string(data))
}

func TestWriteImageNaming(t *testing.T) {
	dir := t.TempDir()

	t.Run("ExtensionFromMediaType", func(t *testing.T) {
		file, err := writeImage(dir, "https://a.test/avatar", "image/png", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "avatar.png"), file)
	})

	t.Run("HashWhenNoPath", func(t *testing.T) {
		file, err := writeImage(dir, "data:image/png;base64,AAAA", "image/png", []byte("x"))
		require.NoError(t, err)
		name := filepath.Base(file)
		assert.True(t, strings.HasSuffix(name, ".png"), name)
		assert.Len(t, strings.TrimSuffix(name, ".png"), 16)
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
		}
	})
}

func TestFetchResultsRows(t *testing.T) {
	rows := fetchResults{
		{URL: "u1", MediaType: "image/gif", Size: 2048},
		{URL: "u2", Error: "boom"},
	}.Rows()

	assert.Equal(t, []string{"u1", "image/gif", "2.0 KiB", "", ""}, rows[0])
	assert.Equal(t, []string{"u2", "", "-", "", "boom"}, rows[1])
}
