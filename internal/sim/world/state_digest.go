package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"factorysim.ai/internal/sim/item"
)

type itemDigest struct {
	ID    string     `json:"id"`
	Pos   [3]float64 `json:"pos"`
	Scale float64    `json:"scale"`
	Owner string     `json:"owner,omitempty"`
}

// stateDigest hashes everything replay must reproduce: facilities with their stations, agents,
// pool sizes and every active item transform.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], nowTick)
	h.Write(tmp[:])

	enc := json.NewEncoder(h)
	for _, f := range w.facilities {
		_ = enc.Encode(f.Status())
	}
	for _, a := range w.agents {
		_ = enc.Encode(a.Status())
	}
	_ = enc.Encode(w.pools.Stats())

	var items []itemDigest
	w.pools.EachActive(func(it *item.Item) {
		items = append(items, itemDigest{
			ID:    string(it.ID()),
			Pos:   it.Pos().ToArray(),
			Scale: it.Scale,
			Owner: string(it.Owner()),
		})
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	_ = enc.Encode(items)

	return hex.EncodeToString(h.Sum(nil))
}
