package blockindex

import (
	"testing"

	"github.com/shurium/shurium-node/pkg/block"
	"github.com/shurium/shurium-node/pkg/types"
)

// chainOf builds n headers chained from genesis (PrevHash zero) and
// inserts them all, returning the entries in ascending height order.
func chainOf(t *testing.T, idx *Index, n int) []*Entry {
	t.Helper()
	entries := make([]*Entry, 0, n)
	var prev types.Hash
	for i := 0; i < n; i++ {
		h := &block.Header{
			Version:  1,
			PrevHash: prev,
			Time:     uint32(1700000000 + i),
			Bits:     0x1d00ffff,
			Nonce:    uint32(i),
		}
		e, err := idx.InsertHeader(h)
		if err != nil {
			t.Fatalf("InsertHeader(%d) error: %v", i, err)
		}
		entries = append(entries, e)
		prev = e.Hash
	}
	return entries
}

func TestIndex_InsertHeader_Genesis(t *testing.T) {
	idx := NewIndex()
	h := &block.Header{Version: 1, Time: 1700000000, Bits: 0x1d00ffff}
	e, err := idx.InsertHeader(h)
	if err != nil {
		t.Fatalf("InsertHeader() error: %v", err)
	}
	if e.Height != 0 {
		t.Errorf("Height = %d, want 0", e.Height)
	}
	if e.Parent != nil {
		t.Error("genesis entry should have nil parent")
	}
	if e.ChainWork.Sign() <= 0 {
		t.Error("expected positive chain work")
	}
}

func TestIndex_InsertHeader_UnknownParent(t *testing.T) {
	idx := NewIndex()
	h := &block.Header{Version: 1, PrevHash: types.Hash{0xaa}, Time: 1700000000, Bits: 0x1d00ffff}
	if _, err := idx.InsertHeader(h); err == nil {
		t.Error("expected error for header with unindexed parent")
	}
}

func TestIndex_InsertHeader_Idempotent(t *testing.T) {
	idx := NewIndex()
	h := &block.Header{Version: 1, Time: 1700000000, Bits: 0x1d00ffff}
	e1, _ := idx.InsertHeader(h)
	e2, err := idx.InsertHeader(h)
	if err != nil {
		t.Fatalf("second InsertHeader() error: %v", err)
	}
	if e1 != e2 {
		t.Error("expected the same entry pointer on re-insertion")
	}
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestIndex_ChainWork_Accumulates(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 3)
	if entries[1].ChainWork.Cmp(entries[0].ChainWork) <= 0 {
		t.Error("expected chain work to strictly increase with height")
	}
	if entries[2].ChainWork.Cmp(entries[1].ChainWork) <= 0 {
		t.Error("expected chain work to strictly increase with height")
	}
}

func TestIndex_GetAncestor(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 20)
	tip := entries[19]

	for h := uint64(0); h <= 19; h++ {
		anc, ok := idx.GetAncestor(tip, h)
		if !ok {
			t.Fatalf("GetAncestor(%d) not found", h)
		}
		if anc.Height != h {
			t.Errorf("GetAncestor(%d).Height = %d", h, anc.Height)
		}
		if anc.Hash != entries[h].Hash {
			t.Errorf("GetAncestor(%d) returned wrong entry", h)
		}
	}
}

func TestIndex_GetAncestor_OutOfRange(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 3)
	if _, ok := idx.GetAncestor(entries[2], 99); ok {
		t.Error("expected GetAncestor to fail for height beyond tip")
	}
}

func TestIndex_FindFork(t *testing.T) {
	idx := NewIndex()
	common := chainOf(t, idx, 5) // heights 0..4

	// Branch A: two more blocks on top of height 4.
	branchA := common[4]
	for i := 0; i < 2; i++ {
		h := &block.Header{Version: 1, PrevHash: branchA.Hash, Time: uint32(2000000000 + i), Bits: 0x1d00ffff, Nonce: uint32(100 + i)}
		e, err := idx.InsertHeader(h)
		if err != nil {
			t.Fatalf("insert branch A: %v", err)
		}
		branchA = e
	}

	// Branch B: three more blocks on top of height 4, distinguished by nonce.
	branchB := common[4]
	for i := 0; i < 3; i++ {
		h := &block.Header{Version: 1, PrevHash: branchB.Hash, Time: uint32(3000000000 + uint32(i)), Bits: 0x1d00ffff, Nonce: uint32(200 + i)}
		e, err := idx.InsertHeader(h)
		if err != nil {
			t.Fatalf("insert branch B: %v", err)
		}
		branchB = e
	}

	fork, err := idx.FindFork(branchA, branchB)
	if err != nil {
		t.Fatalf("FindFork() error: %v", err)
	}
	if fork.Hash != common[4].Hash {
		t.Errorf("fork = height %d, want height 4", fork.Height)
	}
}

func TestIndex_FindFork_SameChain(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 5)
	fork, err := idx.FindFork(entries[4], entries[2])
	if err != nil {
		t.Fatalf("FindFork() error: %v", err)
	}
	if fork.Hash != entries[2].Hash {
		t.Errorf("fork = height %d, want 2", fork.Height)
	}
}

func TestIndex_SetStatus_RejectsLowering(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 1)
	if err := idx.SetStatus(entries[0].Hash, StatusScriptsValid); err != nil {
		t.Fatalf("raise status: %v", err)
	}
	if err := idx.SetStatus(entries[0].Hash, StatusTreeValid); err == nil {
		t.Error("expected error lowering status")
	}
}

func TestIndex_MarkFailed_PropagatesToChildren(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 4)

	idx.MarkFailed(entries[1].Hash)

	for i, e := range entries {
		want := i >= 1
		if e.Failed != want {
			t.Errorf("entry %d Failed = %v, want %v", i, e.Failed, want)
		}
	}
}

func TestIndex_SelectBestCandidate(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 5)
	for _, e := range entries {
		idx.SetStatus(e.Hash, StatusScriptsValid)
	}

	best, ok := idx.SelectBestCandidate(StatusScriptsValid)
	if !ok {
		t.Fatal("expected a best candidate")
	}
	if best.Hash != entries[4].Hash {
		t.Errorf("best = height %d, want 4", best.Height)
	}
}

func TestIndex_SelectBestCandidate_SkipsFailed(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 3)
	for _, e := range entries {
		idx.SetStatus(e.Hash, StatusScriptsValid)
	}
	idx.MarkFailed(entries[2].Hash)

	best, ok := idx.SelectBestCandidate(StatusScriptsValid)
	if !ok {
		t.Fatal("expected a best candidate")
	}
	if best.Hash != entries[1].Hash {
		t.Errorf("best = height %d, want 1 (tip excluded as failed)", best.Height)
	}
}

func TestIndex_SelectBestCandidate_None(t *testing.T) {
	idx := NewIndex()
	chainOf(t, idx, 2) // left at StatusHeaderValid
	if _, ok := idx.SelectBestCandidate(StatusScriptsValid); ok {
		t.Error("expected no candidate when nothing reaches the required status")
	}
}

func TestIndex_SetFileRef(t *testing.T) {
	idx := NewIndex()
	entries := chainOf(t, idx, 1)
	if err := idx.SetFileRef(entries[0].Hash, 3, 0, 128, 64); err != nil {
		t.Fatalf("SetFileRef() error: %v", err)
	}
	e, _ := idx.Get(entries[0].Hash)
	if e.TxCount != 3 || e.FileNum != 0 || e.DataPos != 128 || e.UndoPos != 64 {
		t.Errorf("unexpected file ref fields: %+v", e)
	}
}
