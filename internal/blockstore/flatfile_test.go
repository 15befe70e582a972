package blockstore

import "testing"

func TestFileSet_AppendRead(t *testing.T) {
	fs, err := openFileSet(t.TempDir(), "blk", 0)
	if err != nil {
		t.Fatalf("openFileSet() error: %v", err)
	}
	defer fs.Close()

	ref, err := fs.Append([]byte("hello block"))
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	got, err := fs.Read(ref)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(got) != "hello block" {
		t.Errorf("Read() = %q, want %q", got, "hello block")
	}
}

func TestFileSet_MultipleRecords(t *testing.T) {
	fs, err := openFileSet(t.TempDir(), "blk", 0)
	if err != nil {
		t.Fatalf("openFileSet() error: %v", err)
	}
	defer fs.Close()

	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	refs := make([]Ref, len(payloads))
	for i, p := range payloads {
		ref, err := fs.Append(p)
		if err != nil {
			t.Fatalf("Append(%d) error: %v", i, err)
		}
		refs[i] = ref
	}

	for i, ref := range refs {
		got, err := fs.Read(ref)
		if err != nil {
			t.Fatalf("Read(%d) error: %v", i, err)
		}
		if string(got) != string(payloads[i]) {
			t.Errorf("Read(%d) = %q, want %q", i, got, payloads[i])
		}
	}
}

func TestFileSet_Rotation(t *testing.T) {
	fs, err := openFileSet(t.TempDir(), "blk", 16)
	if err != nil {
		t.Fatalf("openFileSet() error: %v", err)
	}
	defer fs.Close()

	var last Ref
	for i := 0; i < 4; i++ {
		ref, err := fs.Append([]byte("xxxx"))
		if err != nil {
			t.Fatalf("Append(%d) error: %v", i, err)
		}
		last = ref
	}
	if last.FileNum == 0 {
		t.Error("expected rotation to a new file number")
	}
}

func TestFileSet_ReopenPicksUpLatestFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := openFileSet(dir, "blk", 16)
	if err != nil {
		t.Fatalf("openFileSet() error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := fs.Append([]byte("xxxx")); err != nil {
			t.Fatalf("Append(%d) error: %v", i, err)
		}
	}
	wantNum := fs.curNum
	fs.Close()

	reopened, err := openFileSet(dir, "blk", 16)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()
	if reopened.curNum != wantNum {
		t.Errorf("reopened curNum = %d, want %d", reopened.curNum, wantNum)
	}
}

func TestFileSet_BadMagic(t *testing.T) {
	fs, err := openFileSet(t.TempDir(), "blk", 0)
	if err != nil {
		t.Fatalf("openFileSet() error: %v", err)
	}
	defer fs.Close()

	ref, err := fs.Append([]byte("payload"))
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	ref.Offset++ // shift into the middle of the record, off any magic boundary
	if _, err := fs.Read(ref); err == nil {
		t.Error("expected error reading at a non-record offset")
	}
}
