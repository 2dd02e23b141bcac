package nvs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// openers builds a fresh store of every backend rooted in dir.
func openers(t *testing.T) map[string]func(dir string) Store {
	t.Helper()
	return map[string]func(dir string) Store{
		BackendMemory: func(dir string) Store { return NewMemStore() },
		BackendFile: func(dir string) Store {
			s, err := OpenFileStore(filepath.Join(dir, "nvs.yaml"))
			if err != nil {
				t.Fatalf("OpenFileStore() error = %v", err)
			}
			return s
		},
		BackendSQLite: func(dir string) Store {
			s, err := OpenSQLiteStore(filepath.Join(dir, "nvs.db"))
			if err != nil {
				t.Fatalf("OpenSQLiteStore() error = %v", err)
			}
			return s
		},
	}
}

func TestStore_SetCommitGet(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			defer s.Close()

			if _, err := s.GetBlob("wifi.prov"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetBlob() on empty store error = %v, want ErrNotFound", err)
			}

			if err := s.SetBlob("wifi.prov", []byte{1, 2, 3}); err != nil {
				t.Fatalf("SetBlob() error = %v", err)
			}

			// Staged values are visible before commit
			got, err := s.GetBlob("wifi.prov")
			if err != nil {
				t.Fatalf("GetBlob() error = %v", err)
			}
			if !bytes.Equal(got, []byte{1, 2, 3}) {
				t.Errorf("GetBlob() = %v, want [1 2 3]", got)
			}

			if err := s.Commit(); err != nil {
				t.Fatalf("Commit() error = %v", err)
			}

			got, err = s.GetBlob("wifi.prov")
			if err != nil {
				t.Fatalf("GetBlob() after commit error = %v", err)
			}
			if !bytes.Equal(got, []byte{1, 2, 3}) {
				t.Errorf("GetBlob() after commit = %v, want [1 2 3]", got)
			}
		})
	}
}

func TestStore_EraseCommit(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			defer s.Close()

			if err := s.SetBlob("k", []byte("v")); err != nil {
				t.Fatalf("SetBlob() error = %v", err)
			}
			if err := s.Commit(); err != nil {
				t.Fatalf("Commit() error = %v", err)
			}

			if err := s.Erase("k"); err != nil {
				t.Fatalf("Erase() error = %v", err)
			}
			if _, err := s.GetBlob("k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetBlob() after staged erase error = %v, want ErrNotFound", err)
			}
			if err := s.Commit(); err != nil {
				t.Fatalf("Commit() error = %v", err)
			}
			if _, err := s.GetBlob("k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetBlob() after erase commit error = %v, want ErrNotFound", err)
			}

			// Erasing a missing key is fine
			if err := s.Erase("missing"); err != nil {
				t.Errorf("Erase(missing) error = %v", err)
			}
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			defer s.Close()

			for _, key := range []string{"", strings.Repeat("k", MaxKeyLen+1)} {
				if err := s.SetBlob(key, []byte("v")); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("SetBlob(%q) error = %v, want ErrInvalidKey", key, err)
				}
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t.TempDir())
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if _, err := s.GetBlob("k"); !errors.Is(err, ErrClosed) {
				t.Errorf("GetBlob() after Close error = %v, want ErrClosed", err)
			}
			if err := s.Commit(); !errors.Is(err, ErrClosed) {
				t.Errorf("Commit() after Close error = %v, want ErrClosed", err)
			}
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "nvs.yaml")

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	if err := s.SetBlob("committed", []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := s.SetBlob("staged", []byte("no")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetBlob("committed")
	if err != nil || string(got) != "yes" {
		t.Errorf("GetBlob(committed) = %q, %v; want \"yes\", nil", got, err)
	}
	if _, err := reopened.GetBlob("staged"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlob(staged) error = %v, want ErrNotFound (never committed)", err)
	}
}

func TestFileStore_CommitSyncsDirectory(t *testing.T) {
	tests := []struct {
		name    string
		syncErr error
		wantErr bool
	}{
		{name: "sync succeeds"},
		{name: "sync fails", syncErr: errors.New("eio"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nvs.yaml")
			s, err := OpenFileStore(path)
			if err != nil {
				t.Fatalf("OpenFileStore() error = %v", err)
			}
			defer s.Close()

			var synced []string
			orig := syncDir
			syncDir = func(dir string) error {
				synced = append(synced, dir)
				return tt.syncErr
			}
			defer func() { syncDir = orig }()

			if err := s.SetBlob("wifi.prov", []byte("rec")); err != nil {
				t.Fatal(err)
			}
			err = s.Commit()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Commit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.syncErr) {
				t.Errorf("Commit() error = %v, want wrapping %v", err, tt.syncErr)
			}
			if len(synced) != 1 || synced[0] != filepath.Dir(path) {
				t.Errorf("synced directories = %v, want [%s]", synced, filepath.Dir(path))
			}
		})
	}
}

func TestFileStore_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.yaml")
	if err := os.WriteFile(path, []byte("version: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Error("OpenFileStore() with version 7 should fail")
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.db")

	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	if err := s.SetBlob("k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := s.SetBlob("k", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetBlob("k")
	if err != nil {
		t.Fatalf("GetBlob() error = %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("GetBlob() = %q, want %q (v2 was never committed)", got, "v1")
	}
}

func TestMemStore_FailNext(t *testing.T) {
	s := NewMemStore()
	boom := errors.New("flash write failed")

	if err := s.SetBlob("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.FailNext(OpCommit, boom)

	if err := s.Commit(); !errors.Is(err, boom) {
		t.Fatalf("Commit() error = %v, want %v", err, boom)
	}
	if _, ok := s.Durable("k"); ok {
		t.Error("value durable after failed commit")
	}

	// Staged change survives and lands on retry
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() retry error = %v", err)
	}
	if v, ok := s.Durable("k"); !ok || string(v) != "v" {
		t.Errorf("Durable(k) = %q, %v; want \"v\", true", v, ok)
	}
	if s.Commits() != 1 {
		t.Errorf("Commits() = %d, want 1", s.Commits())
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("eeprom", ""); err == nil {
		t.Error("Open(eeprom) should fail")
	}
}
