package sig

import "github.com/offsetnet/creditrouter/internal/amount"

// The hash of each of these byte strings opens one of the four signing
// contracts of spec §4.6, domain-separating them so a signature produced for one
// purpose can never be replayed as valid for another.
var (
	tagFundResponse   = []byte("FUND_RESPONSE")
	tagNext           = []byte("NEXT")
	tagResetToken     = []byte("RESET_TOKEN")
	tagMutationsUpdate = []byte("MUTATIONS_UPDATE")
)

// CanonCurrency serializes a currency identifier as a length-prefixed byte
// string, the canonical form every peer must agree on bit-for-bit.
func CanonCurrency(currency string) []byte {
	raw := []byte(currency)
	out := make([]byte, 0, 4+len(raw))
	out = append(out, BE32(uint32(len(raw)))...)
	out = append(out, raw...)
	return out
}

// ResponseSignBuffer builds the buffer the destination signs over to
// authorize a Response operation (spec §4.6):
//
//	H("FUND_RESPONSE") || H(request_id || hmac || src_plain_lock || dest_payment) || serial_num || total_dest_payment || invoice_hash || left_fees || canon(currency)
//
// left_fees is included so the remaining fee budget a Response reports
// back through every hop cannot be altered in transit (spec §4.1
// "out_fees"/"in_fees").
func ResponseSignBuffer(requestID Uid, hmac [32]byte, srcPlainLock [32]byte,
	destPayment amount.U128, serialNum uint64, totalDestPayment amount.U128,
	invoiceHash Hash, leftFees amount.U128, currency string) []byte {

	inner := H(requestID[:], hmac[:], srcPlainLock[:], destPayment.Bytes())
	tag := H(tagFundResponse)

	out := make([]byte, 0, 32+32+8+16+16+32+4+len(currency))
	out = append(out, tag[:]...)
	out = append(out, inner[:]...)
	out = append(out, BE64(serialNum)...)
	out = append(out, totalDestPayment.Bytes()...)
	out = append(out, invoiceHash[:]...)
	out = append(out, leftFees.Bytes()...)
	out = append(out, CanonCurrency(currency)...)
	return out
}

// MoveTokenSignBuffer builds the buffer signed to produce new_token (spec
// §4.6): H("NEXT") || old_token || info_hash.
func MoveTokenSignBuffer(oldToken Hash, infoHash Hash) []byte {
	tag := H(tagNext)
	out := make([]byte, 0, len(tag)+len(oldToken)+len(infoHash))
	out = append(out, tag[:]...)
	out = append(out, oldToken[:]...)
	out = append(out, infoHash[:]...)
	return out
}

// ResetTokenSignBuffer builds the buffer signed to produce reset_token
// (spec §4.6): H("RESET_TOKEN") || local_pk || remote_pk || move_token_counter.
func ResetTokenSignBuffer(localPk, remotePk PublicKey, counter amount.U128) []byte {
	tag := H(tagResetToken)
	out := make([]byte, 0, len(tag)+len(localPk)+len(remotePk)+16)
	out = append(out, tag[:]...)
	out = append(out, localPk[:]...)
	out = append(out, remotePk[:]...)
	out = append(out, counter.Bytes()...)
	return out
}

// MutationsUpdateSignBuffer builds the buffer signed by the index-client
// over a batch of mutations (spec §4.6):
//
//	H("MUTATIONS_UPDATE") || node_pk || u64(len) || Σ canon(mutation) || time_hash || session_id || u64(counter) || rand_nonce
func MutationsUpdateSignBuffer(nodePk PublicKey, canonMutations [][]byte,
	timeHash Hash, sessionID Uid, counter uint64, nonce RandNonce) []byte {

	tag := H(tagMutationsUpdate)
	out := make([]byte, 0, 256)
	out = append(out, tag[:]...)
	out = append(out, nodePk[:]...)
	out = append(out, BE64(uint64(len(canonMutations)))...)
	for _, m := range canonMutations {
		out = append(out, m...)
	}
	out = append(out, timeHash[:]...)
	out = append(out, sessionID[:]...)
	out = append(out, BE64(counter)...)
	out = append(out, nonce[:]...)
	return out
}
