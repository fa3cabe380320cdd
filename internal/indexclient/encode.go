package indexclient

import "github.com/offsetnet/creditrouter/internal/sig"

// encodeUpdate renders u into the flat byte form sent to the index
// server. The server's own wire format is out of scope (spec §1); this
// layout only needs to be self-describing enough for that external
// process to parse, and is kept in the same field order as the
// MUTATIONS_UPDATE signing buffer so the two are easy to reason about
// side by side.
func encodeUpdate(u *Update) ([]byte, error) {
	out := make([]byte, 0, 128+len(u.Mutations)*64)
	out = append(out, u.NodePk[:]...)
	out = append(out, sig.BE64(uint64(len(u.Mutations)))...)
	for _, m := range u.Mutations {
		canon := m.Canon()
		out = append(out, sig.BE64(uint64(len(canon)))...)
		out = append(out, canon...)
	}
	out = append(out, u.TimeHash[:]...)
	out = append(out, u.SessionID[:]...)
	out = append(out, sig.BE64(u.Counter)...)
	out = append(out, u.RandNonce[:]...)
	out = append(out, u.Signature[:]...)
	return out, nil
}
