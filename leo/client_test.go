package leo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.Client(), srv.URL, StaticToken("tok"), testLogger())
	client.retryDelay = time.Millisecond
	return client
}

func TestListDirectories(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/synced-directories", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"id":"d1","uri":"C:\\Vault","machineId":"AA:BB:CC:DD:EE:FF","workingDirectory":true}]`)
	})

	dirs, err := client.ListDirectories(context.Background())
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "d1", dirs[0].ID)
	assert.Equal(t, `C:\Vault`, dirs[0].URI)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", dirs[0].MachineID)
}

func TestCreateDirectory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req CreateDirectoryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", req.MachineID)
		assert.Equal(t, "/vault", req.URI)

		fmt.Fprint(w, `{"id":"d2","uri":"/vault","machineId":"AA:BB:CC:DD:EE:FF"}`)
	})

	dir, err := client.CreateDirectory(context.Background(), "AA:BB:CC:DD:EE:FF", "/vault")
	require.NoError(t, err)
	assert.Equal(t, "d2", dir.ID)
}

func TestCreateDirectory_RejectsBadMachineID(t *testing.T) {
	client := NewClient(nil, "http://unused.invalid", StaticToken("tok"), testLogger())

	_, err := client.CreateDirectory(context.Background(), "not-a-mac", "/vault")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine identifier")

	_, err = client.CreateDirectory(context.Background(), "", "/vault")
	require.Error(t, err)
}

func TestCreateFile_MultipartFields(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "sub", "bracket.sldprt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("geometry"), 0o644))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, MimePart, r.FormValue("mimeType"))
		assert.Equal(t, Checksum([]byte("geometry")), r.FormValue("checkSum"))
		assert.Equal(t, "sub/bracket.sldprt", r.FormValue("filePathInDirectory"))
		assert.Empty(t, r.FormValue("dependencies"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "bracket.sldprt", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("geometry"), content)

		fmt.Fprintf(w, `{"componentId":"c1","filePathInDirectory":"sub/bracket.sldprt","checkSum":%q,"mimeType":%q}`,
			r.FormValue("checkSum"), MimePart)
	})

	rec, err := client.CreateFile(context.Background(), "d1", root, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", rec.ComponentID)
	assert.Equal(t, "sub/bracket.sldprt", rec.FilePathInDirectory)
}

func TestCreateFile_WithDependencies(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "frame.sldasm")
	require.NoError(t, os.WriteFile(path, []byte("assembly"), 0o644))

	deps := []Dependency{
		{CheckSum: "abc123", FilePath: "parts/beam.sldprt"},
		{CheckSum: "def456", FilePath: "parts/plate.sldprt"},
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var got []Dependency
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("dependencies")), &got))
		assert.Equal(t, deps, got)

		fmt.Fprint(w, `{"componentId":"c2","filePathInDirectory":"frame.sldasm"}`)
	})

	_, err := client.CreateFile(context.Background(), "d1", root, path, deps)
	require.NoError(t, err)
}

func TestDeleteFile_EscapesPath(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/synced-directories/d1/files/c1", r.URL.Path)
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "sub dir/part one.sldprt", r.URL.Query().Get("filePathInDirectory"))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.DeleteFile(context.Background(), "d1", "c1", `sub dir\part one.sldprt`)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "filePathInDirectory=")
	assert.NotContains(t, gotQuery, " ")
}

func TestSyncMetadata(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/synced-directories/d1/files/sync-metadata", r.URL.Path)
		fmt.Fprint(w, `{"directoryId":"d1","files":[{"componentId":"c1","fileStored":true,"checkSum":"abc","filePathInDirectory":"a/b.sldprt","mimeType":"application/x-sldprt"}]}`)
	})

	meta, err := client.SyncMetadata(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", meta.DirectoryID)
	require.Len(t, meta.Files, 1)
	assert.Equal(t, "c1", meta.Files[0].ComponentID)
	assert.True(t, meta.Files[0].FileStored)
}

func TestFileInfoByPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"directoryId":"d1","files":[{"componentId":"c1","checkSum":"abc","filePathInDirectory":"Sub/Part.sldprt"}]}`)
	})

	// Lookup is case-insensitive and separator-insensitive.
	rec, err := client.FileInfoByPath(context.Background(), "d1", `sub\part.sldprt`)
	require.NoError(t, err)
	assert.Equal(t, "c1", rec.ComponentID)

	_, err = client.FileInfoByPath(context.Background(), "d1", "missing.sldprt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	dirs, err := client.ListDirectories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dirs)
	assert.Equal(t, 3, attempts)
}

func TestDo_NoRetryOnTerminalStatus(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "no such directory", http.StatusNotFound)
	})

	_, err := client.SyncMetadata(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, 1, attempts)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.ListDirectories(context.Background())
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestDeleteDirectory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/synced-directories/d9", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteDirectory(context.Background(), "d9"))
}
