package storage

import (
	"bytes"
	"encoding/binary"
	"io"

	goerrors "github.com/go-errors/errors"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/route"
)

// byteOrder is the integer encoding used throughout this package's
// on-disk layout, following channeldb's convention of big-endian so
// cursor scans over integer keys iterate in order.
var byteOrder = binary.BigEndian

// encodeMutation serializes m into the flat binary form stored as one
// bbolt value, mirroring channeldb/graph.go's binary.Write-into-a-buffer
// shape rather than reaching for a generic encoder.
func encodeMutation(m mc.Mutation) ([]byte, error) {
	var b bytes.Buffer

	if err := binary.Write(&b, byteOrder, m.Kind); err != nil {
		return nil, err
	}
	if err := writeString(&b, m.Currency); err != nil {
		return nil, err
	}

	switch m.Kind {
	case mc.MutInsertLocal, mc.MutInsertRemote:
		if err := writePendingTransaction(&b, m.Pending); err != nil {
			return nil, err
		}
	case mc.MutRemoveLocal, mc.MutRemoveRemote:
		if _, err := b.Write(m.RequestID[:]); err != nil {
			return nil, err
		}
	case mc.MutSetBalance:
		if err := writeBalance(&b, m.Balance); err != nil {
			return nil, err
		}
	default:
		return nil, goerrors.Errorf("unknown mutation kind %d", m.Kind)
	}

	return b.Bytes(), nil
}

// decodeMutation is encodeMutation's inverse, used when replaying the log
// at startup (spec §8 "replaying the persisted mutation log produces a
// state bytewise equal to the state captured at log-end").
func decodeMutation(raw []byte) (mc.Mutation, error) {
	r := bytes.NewReader(raw)

	var kind mc.MutationKind
	if err := binary.Read(r, byteOrder, &kind); err != nil {
		return mc.Mutation{}, err
	}
	currency, err := readString(r)
	if err != nil {
		return mc.Mutation{}, err
	}

	m := mc.Mutation{Kind: kind, Currency: currency}

	switch kind {
	case mc.MutInsertLocal, mc.MutInsertRemote:
		pending, err := readPendingTransaction(r)
		if err != nil {
			return mc.Mutation{}, err
		}
		m.Pending = pending
	case mc.MutRemoveLocal, mc.MutRemoveRemote:
		if _, err := io.ReadFull(r, m.RequestID[:]); err != nil {
			return mc.Mutation{}, err
		}
	case mc.MutSetBalance:
		bal, err := readBalance(r)
		if err != nil {
			return mc.Mutation{}, err
		}
		m.Balance = bal
	default:
		return mc.Mutation{}, goerrors.Errorf("unknown mutation kind %d", kind)
	}

	return m, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, byteOrder, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeU128(w io.Writer, u amount.U128) error {
	_, err := w.Write(u.Bytes())
	return err
}

func readU128(r io.Reader) (amount.U128, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return amount.U128{}, err
	}
	return amount.U128{
		Hi: byteOrder.Uint64(buf[0:8]),
		Lo: byteOrder.Uint64(buf[8:16]),
	}, nil
}

func writeBalance(w io.Writer, bal mc.McBalance) error {
	neg := byte(0)
	if bal.Balance.Neg {
		neg = 1
	}
	if err := binary.Write(w, byteOrder, neg); err != nil {
		return err
	}
	for _, u := range []amount.U128{
		bal.Balance.Mag, bal.LocalPendingDebt, bal.RemotePendingDebt,
		bal.LocalMaxDebt, bal.RemoteMaxDebt,
	} {
		if err := writeU128(w, u); err != nil {
			return err
		}
	}
	if err := binary.Write(w, byteOrder, bal.InFees); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, bal.OutFees)
}

func readBalance(r io.Reader) (mc.McBalance, error) {
	var neg byte
	if err := binary.Read(r, byteOrder, &neg); err != nil {
		return mc.McBalance{}, err
	}
	vals := make([]amount.U128, 5)
	for i := range vals {
		u, err := readU128(r)
		if err != nil {
			return mc.McBalance{}, err
		}
		vals[i] = u
	}
	var inFees, outFees uint64
	if err := binary.Read(r, byteOrder, &inFees); err != nil {
		return mc.McBalance{}, err
	}
	if err := binary.Read(r, byteOrder, &outFees); err != nil {
		return mc.McBalance{}, err
	}
	return mc.McBalance{
		Balance:           amount.Signed{Neg: neg == 1, Mag: vals[0]},
		LocalPendingDebt:  vals[1],
		RemotePendingDebt: vals[2],
		LocalMaxDebt:      vals[3],
		RemoteMaxDebt:     vals[4],
		InFees:            inFees,
		OutFees:           outFees,
	}, nil
}

func writePendingTransaction(w io.Writer, p *mc.PendingTransaction) error {
	if _, err := w.Write(p.RequestID[:]); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(p.RouteRemainder))); err != nil {
		return err
	}
	for _, hop := range p.RouteRemainder {
		if _, err := w.Write(hop[:]); err != nil {
			return err
		}
	}
	for _, u := range []amount.U128{p.DestPayment, p.TotalDestPayment, p.LeftFees} {
		if err := writeU128(w, u); err != nil {
			return err
		}
	}
	if _, err := w.Write(p.InvoiceHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(p.Hmac[:]); err != nil {
		return err
	}
	_, err := w.Write(p.SrcHashedLock[:])
	return err
}

func readPendingTransaction(r io.Reader) (*mc.PendingTransaction, error) {
	p := &mc.PendingTransaction{}
	if _, err := io.ReadFull(r, p.RequestID[:]); err != nil {
		return nil, err
	}
	var hopCount uint32
	if err := binary.Read(r, byteOrder, &hopCount); err != nil {
		return nil, err
	}
	p.RouteRemainder = make(route.Route, hopCount)
	for i := range p.RouteRemainder {
		if _, err := io.ReadFull(r, p.RouteRemainder[i][:]); err != nil {
			return nil, err
		}
	}
	var err error
	if p.DestPayment, err = readU128(r); err != nil {
		return nil, err
	}
	if p.TotalDestPayment, err = readU128(r); err != nil {
		return nil, err
	}
	if p.LeftFees, err = readU128(r); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, p.InvoiceHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, p.Hmac[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, p.SrcHashedLock[:]); err != nil {
		return nil, err
	}
	return p, nil
}
