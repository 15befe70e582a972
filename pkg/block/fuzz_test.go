package block

import (
	"encoding/json"
	"testing"

	"github.com/shurium/shurium-node/pkg/tx"
	"github.com/shurium/shurium-node/pkg/types"
)

// FuzzBlockUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Block struct.
func FuzzBlockUnmarshal(f *testing.F) {
	// Seed with a minimal valid block JSON.
	f.Add([]byte(`{"header":{"version":1,"prev_hash":"` + zeroHashHex + `","merkle_root":"` + zeroHashHex + `","time":1000,"bits":0,"nonce":0},"transactions":[]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"header":null}`))
	f.Add([]byte(`{"header":{"version":99999},"transactions":[{"inputs":[],"outputs":[]}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var blk Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return // Invalid JSON is expected.
		}
		// If unmarshal succeeded, Validate and Hash must not panic.
		blk.Validate()
		blk.Hash()
	})
}

// FuzzBlockHeaderUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Header struct.
func FuzzBlockHeaderUnmarshal(f *testing.F) {
	f.Add([]byte(`{"version":1,"time":1000,"bits":0,"nonce":0}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"bits":4294967295}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var h Header
		if err := json.Unmarshal(data, &h); err != nil {
			return
		}
		h.Hash()
		h.Serialize()
	})
}

// FuzzDeserializeBlock tests that arbitrary bytes never panic the wire
// decoder, regardless of how malformed.
func FuzzDeserializeBlock(f *testing.F) {
	blk := validBlockForFuzz()
	f.Add(blk.Serialize())
	f.Add([]byte{})
	f.Add(make([]byte, HeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		b, err := DeserializeBlock(data)
		if err != nil {
			return
		}
		b.Hash()
		b.Validate()
	})
}

const zeroHashHex = "0000000000000000000000000000000000000000000000000000000000000000"[:64]

func validBlockForFuzz() *Block {
	coinbase := testCoinbase()
	root := ComputeMerkleRoot([]types.Hash{coinbase.Hash()})
	return NewBlock(&Header{Version: 1, MerkleRoot: root, Time: 1700000000}, []*tx.Transaction{coinbase})
}
