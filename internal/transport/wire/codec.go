package wire

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/kickboxer/quorumkv/internal/action"
	"github.com/kickboxer/quorumkv/internal/paxos"
	"github.com/kickboxer/quorumkv/internal/serializer"
)

// Message type tags carried as the first byte of every frame payload.
const (
	msgPrepareRequest uint8 = iota + 1
	msgPrepareReply
	msgAcceptRequest
	msgAcceptReply
	msgCommitRequest
	msgCommitReply
)

func encodeProposalNumber(w *bufio.Writer, id paxos.ProposalNumber) error {
	if err := serializer.WriteUint64(w, id.Counter); err != nil {
		return err
	}
	return serializer.WriteString(w, id.NodeID)
}

func decodeProposalNumber(r *bufio.Reader) (paxos.ProposalNumber, error) {
	counter, err := serializer.ReadUint64(r)
	if err != nil {
		return paxos.ProposalNumber{}, err
	}
	nodeID, err := serializer.ReadString(r)
	if err != nil {
		return paxos.ProposalNumber{}, err
	}
	return paxos.ProposalNumber{Counter: counter, NodeID: nodeID}, nil
}

func encodePrepareRequest(id paxos.ProposalNumber, key int, a action.Action) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := encodeProposalNumber(w, id); err != nil {
		return nil, err
	}
	if err := serializer.WriteInt64(w, int64(key)); err != nil {
		return nil, err
	}
	if err := serializer.WriteUint8(w, uint8(a.Wire())); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePrepareRequest(payload []byte) (paxos.ProposalNumber, int, action.Action, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	id, err := decodeProposalNumber(r)
	if err != nil {
		return paxos.ProposalNumber{}, 0, action.Invalid, err
	}
	key, err := serializer.ReadInt64(r)
	if err != nil {
		return paxos.ProposalNumber{}, 0, action.Invalid, err
	}
	code, err := serializer.ReadUint8(r)
	if err != nil {
		return paxos.ProposalNumber{}, 0, action.Invalid, err
	}
	return id, int(key), action.FromWire(int(code)), nil
}

func encodePrepareReply(ok bool, prev *paxos.PrevAccepted, highestSeen paxos.ProposalNumber) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := serializer.WriteBool(w, ok); err != nil {
		return nil, err
	}
	if err := serializer.WriteBool(w, prev != nil); err != nil {
		return nil, err
	}
	if prev != nil {
		if err := encodeProposalNumber(w, prev.ID); err != nil {
			return nil, err
		}
		if err := serializer.WriteInt64(w, int64(prev.Key)); err != nil {
			return nil, err
		}
		if err := serializer.WriteUint8(w, uint8(prev.Action.Wire())); err != nil {
			return nil, err
		}
	}
	if err := encodeProposalNumber(w, highestSeen); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePrepareReply(payload []byte) (bool, *paxos.PrevAccepted, paxos.ProposalNumber, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	ok, err := serializer.ReadBool(r)
	if err != nil {
		return false, nil, paxos.ProposalNumber{}, err
	}
	hasPrev, err := serializer.ReadBool(r)
	if err != nil {
		return false, nil, paxos.ProposalNumber{}, err
	}
	var prev *paxos.PrevAccepted
	if hasPrev {
		id, err := decodeProposalNumber(r)
		if err != nil {
			return false, nil, paxos.ProposalNumber{}, err
		}
		key, err := serializer.ReadInt64(r)
		if err != nil {
			return false, nil, paxos.ProposalNumber{}, err
		}
		code, err := serializer.ReadUint8(r)
		if err != nil {
			return false, nil, paxos.ProposalNumber{}, err
		}
		prev = &paxos.PrevAccepted{ID: id, Key: int(key), Action: action.FromWire(int(code))}
	}
	highestSeen, err := decodeProposalNumber(r)
	if err != nil {
		return false, nil, paxos.ProposalNumber{}, err
	}
	return ok, prev, highestSeen, nil
}

func encodeAcceptReply(ok bool, highestSeen paxos.ProposalNumber) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := serializer.WriteBool(w, ok); err != nil {
		return nil, err
	}
	if err := encodeProposalNumber(w, highestSeen); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAcceptReply(payload []byte) (bool, paxos.ProposalNumber, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	ok, err := serializer.ReadBool(r)
	if err != nil {
		return false, paxos.ProposalNumber{}, err
	}
	highestSeen, err := decodeProposalNumber(r)
	if err != nil {
		return false, paxos.ProposalNumber{}, err
	}
	return ok, highestSeen, nil
}

func encodeCommitRequest(key int, a action.Action) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := serializer.WriteInt64(w, int64(key)); err != nil {
		return nil, err
	}
	if err := serializer.WriteUint8(w, uint8(a.Wire())); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCommitRequest(payload []byte) (int, action.Action, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	key, err := serializer.ReadInt64(r)
	if err != nil {
		return 0, action.Invalid, err
	}
	code, err := serializer.ReadUint8(r)
	if err != nil {
		return 0, action.Invalid, err
	}
	return int(key), action.FromWire(int(code)), nil
}

func encodeCommitReply(result string) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := serializer.WriteString(w, result); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCommitReply(payload []byte) (string, error) {
	r := bufio.NewReader(bytes.NewReader(payload))
	return serializer.ReadString(r)
}

// writeFrame writes a [4-byte length][1-byte type][payload] frame, the
// length covering the type byte and the payload together.
func writeFrame(w *bufio.Writer, msgType uint8, payload []byte) error {
	body := make([]byte, len(payload)+1)
	body[0] = msgType
	copy(body[1:], payload)
	return serializer.WriteFieldBytes(w, body)
}

// readFrame reads a frame written by writeFrame.
func readFrame(r *bufio.Reader) (uint8, []byte, error) {
	body, err := serializer.ReadFieldBytes(r)
	if err != nil {
		return 0, nil, err
	}
	if len(body) < 1 {
		return 0, nil, fmt.Errorf("wire: empty frame")
	}
	return body[0], body[1:], nil
}
