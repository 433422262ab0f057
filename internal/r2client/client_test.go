package r2client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressDecompress(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "openct.db")
	compressedPath := filepath.Join(tmpDir, "openct.db.zst")
	decompressedPath := filepath.Join(tmpDir, "restored.db")

	testData := strings.Repeat("SQLite format 3\x00 课程表 ", 1000)
	if err := os.WriteFile(srcPath, []byte(testData), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := CompressFile(srcPath, compressedPath); err != nil {
		t.Fatalf("CompressFile failed: %v", err)
	}

	srcInfo, _ := os.Stat(srcPath)
	compressedInfo, err := os.Stat(compressedPath)
	if err != nil {
		t.Fatalf("Compressed file not created: %v", err)
	}
	if compressedInfo.Size() >= srcInfo.Size() {
		t.Errorf("Expected compression, got %d >= %d bytes", compressedInfo.Size(), srcInfo.Size())
	}

	compressedFile, err := os.Open(compressedPath)
	if err != nil {
		t.Fatalf("Failed to open compressed file: %v", err)
	}
	defer compressedFile.Close()

	if err := DecompressStream(compressedFile, decompressedPath); err != nil {
		t.Fatalf("DecompressStream failed: %v", err)
	}

	decompressedData, err := os.ReadFile(decompressedPath)
	if err != nil {
		t.Fatalf("Failed to read decompressed file: %v", err)
	}
	if string(decompressedData) != testData {
		t.Errorf("Decompressed data mismatch: got %d bytes, want %d bytes", len(decompressedData), len(testData))
	}
}

func TestCompressFile_Errors(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	if err := CompressFile("/nonexistent/path/file.db", filepath.Join(tmpDir, "out.zst")); err == nil {
		t.Error("Expected error for non-existent source file")
	}

	srcPath := filepath.Join(tmpDir, "source.db")
	if err := os.WriteFile(srcPath, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if err := CompressFile(srcPath, "/nonexistent/dir/out.zst"); err == nil {
		t.Error("Expected error for invalid destination path")
	}
}

func TestDecompressStream_InvalidDataLeavesNoFile(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "out.db")
	err := DecompressStream(strings.NewReader("this is not zstd compressed data"), dst)
	if err == nil {
		t.Fatal("Expected error for invalid zstd data")
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Errorf("Expected partial output removed, stat err = %v", statErr)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Endpoint:    "https://account.r2.cloudflarestorage.com",
		AccessKeyID: "access-key",
		SecretKey:   "secret-key",
		BucketName:  "my-bucket",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"missing access key", func(c *Config) { c.AccessKeyID = "" }, true},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }, true},
		{"missing bucket", func(c *Config) { c.BucketName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)

			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if _, err := New(context.Background(), cfg); (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// fakeR2 serves the subset of the S3 API used by ListKeys, Download and
// DeleteObject with path-style addressing.
func fakeR2(t *testing.T, objects map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/bucket")
		key := strings.TrimPrefix(path, "/")

		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			prefix := r.URL.Query().Get("prefix")
			w.Header().Set("Content-Type", "application/xml")
			var b bytes.Buffer
			b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>bucket</Name><IsTruncated>false</IsTruncated>`)
			for k := range objects {
				if strings.HasPrefix(k, prefix) {
					fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>1</Size></Contents>", k)
				}
			}
			b.WriteString(`</ListBucketResult>`)
			_, _ = w.Write(b.Bytes())

		case r.Method == http.MethodGet:
			body, ok := objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
				return
			}
			w.Header().Set("ETag", `"etag-`+key+`"`)
			_, _ = io.WriteString(w, body)

		case r.Method == http.MethodDelete:
			delete(objects, key)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), Config{
		Endpoint:    srv.URL,
		AccessKeyID: "test",
		SecretKey:   "test",
		BucketName:  "bucket",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestClient_ListDownloadDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakeR2(t, map[string]string{
		"snapshots/200-b.db.zst": "second",
		"snapshots/100-a.db.zst": "first",
		"other/x":                "ignored",
	})

	keys, err := client.ListKeys(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	want := []string{"snapshots/100-a.db.zst", "snapshots/200-b.db.zst"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("ListKeys = %v, want %v", keys, want)
	}

	body, etag, err := client.Download(ctx, "snapshots/200-b.db.zst")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if string(data) != "second" || etag != "etag-snapshots/200-b.db.zst" {
		t.Errorf("Download = %q (etag %q)", data, etag)
	}

	if err := client.DeleteObject(ctx, "snapshots/100-a.db.zst"); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if _, _, err := client.Download(ctx, "snapshots/100-a.db.zst"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
