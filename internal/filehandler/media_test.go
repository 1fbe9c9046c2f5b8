package filehandler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext     string
		want    string
		wantErr bool
	}{
		{".jpg", "image/jpeg", false},
		{".JPEG", "image/jpeg", false},
		{".png", "image/png", false},
		{".webp", "image/webp", false},
		{".gif", "image/gif", false},
		{".heic", "image/heic", false},
		{".HEIF", "image/heif", false},
		{".mp4", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := GetMIMEType(tt.ext)
		if (err != nil) != tt.wantErr {
			t.Errorf("GetMIMEType(%q) error = %v, wantErr %v", tt.ext, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanDirectoryWithOptions(t *testing.T) {
	dir := t.TempDir()
	img := encodePNG(t, 10, 10)

	writeFile(t, filepath.Join(dir, "b.png"), img)
	writeFile(t, filepath.Join(dir, "a.png"), img)
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("hello"))
	writeFile(t, filepath.Join(dir, "nested", "c.png"), img)
	writeFile(t, filepath.Join(dir, ".cache", "d.png"), img)
	writeFile(t, filepath.Join(dir, ".hidden.png"), img)

	t.Run("Recursive", func(t *testing.T) {
		files, err := ScanDirectory(dir)
		if err != nil {
			t.Fatalf("ScanDirectory() error = %v", err)
		}
		if len(files) != 3 {
			t.Fatalf("got %d files, want 3", len(files))
		}
		if files[0].Name() != "a.png" || files[1].Name() != "b.png" {
			t.Errorf("files not sorted by path: %s, %s", files[0].Name(), files[1].Name())
		}
		if files[0].MIMEType != "image/png" {
			t.Errorf("MIMEType = %q, want image/png", files[0].MIMEType)
		}
	})

	t.Run("Top level only", func(t *testing.T) {
		files, err := ScanDirectoryWithOptions(dir, ScanOptions{MaxDepth: 1})
		if err != nil {
			t.Fatalf("ScanDirectoryWithOptions() error = %v", err)
		}
		if len(files) != 2 {
			t.Errorf("got %d files, want 2", len(files))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		files, err := ScanDirectoryWithOptions(dir, ScanOptions{Limit: 1})
		if err != nil {
			t.Fatalf("ScanDirectoryWithOptions() error = %v", err)
		}
		if len(files) != 1 || files[0].Name() != "a.png" {
			t.Errorf("limit should keep the first file in path order, got %d files", len(files))
		}
	})

	t.Run("Read data", func(t *testing.T) {
		files, err := ScanDirectory(dir)
		if err != nil {
			t.Fatalf("ScanDirectory() error = %v", err)
		}
		data, err := files[0].ReadData()
		if err != nil {
			t.Fatalf("ReadData() error = %v", err)
		}
		if len(data) != len(img) {
			t.Errorf("ReadData() returned %d bytes, want %d", len(data), len(img))
		}
	})
}

func TestScanDirectoryErrors(t *testing.T) {
	if _, err := ScanDirectory(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.png")
	writeFile(t, file, []byte("x"))
	if _, err := ScanDirectory(file); err == nil {
		t.Error("expected error when path is a file")
	}
}
