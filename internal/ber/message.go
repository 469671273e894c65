package ber

import (
	asn1ber "github.com/go-asn1-ber/asn1-ber"
)

// Control is an LDAP control (RFC 4511 §4.1.11). The proxy decodes
// controls only far enough to forward them opaquely; it never
// interprets controlValue.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
	HasValue    bool
}

// Envelope is a decoded LDAPMessage: messageID, the protocolOp CHOICE
// (left as its raw BER packet, tagged by Op), and any controls.
type Envelope struct {
	MessageID   int64
	Op          *asn1ber.Packet
	OpTag       appTag
	Controls    []Control
	controlsPkt *asn1ber.Packet
	raw         []byte
	rawReleased bool
}

// DecodeEnvelope interprets a packet already parsed by ReadEnvelope as
// an LDAPMessage SEQUENCE, splitting it into messageID, protocolOp and
// controls without decoding the protocolOp body itself.
func DecodeEnvelope(raw []byte, packet *asn1ber.Packet) (*Envelope, error) {
	if packet.ClassType != asn1ber.ClassUniversal || packet.TagType != asn1ber.TypeConstructed || packet.Tag != asn1ber.TagSequence {
		return nil, ErrMalformed
	}
	if len(packet.Children) < 2 {
		return nil, ErrMalformed
	}

	idPkt := packet.Children[0]
	if idPkt.Tag != asn1ber.TagInteger {
		return nil, ErrMalformed
	}
	msgID, ok := idPkt.Value.(int64)
	if !ok {
		return nil, ErrMalformed
	}

	opPkt := packet.Children[1]
	env := &Envelope{
		MessageID: msgID,
		Op:        opPkt,
		OpTag:     appTag(opPkt.Tag),
		raw:       raw,
	}

	if len(packet.Children) >= 3 {
		ctrls, err := decodeControls(packet.Children[2])
		if err != nil {
			return nil, err
		}
		env.Controls = ctrls
		env.controlsPkt = packet.Children[2]
	}

	return env, nil
}

func decodeControls(packet *asn1ber.Packet) ([]Control, error) {
	if packet.ClassType != asn1ber.ClassContext || packet.Tag != 0 {
		// Not the [0] Controls element; ignore (future protocol
		// extensions may add further optional elements here).
		return nil, nil
	}

	out := make([]Control, 0, len(packet.Children))
	for _, c := range packet.Children {
		if len(c.Children) < 1 {
			return nil, ErrMalformed
		}
		ctrl := Control{}
		oidPkt := c.Children[0]
		oid, ok := oidPkt.Value.(string)
		if !ok {
			return nil, ErrMalformed
		}
		ctrl.OID = oid

		idx := 1
		if idx < len(c.Children) && c.Children[idx].Tag == asn1ber.TagBoolean {
			b, ok := c.Children[idx].Value.(bool)
			if !ok {
				return nil, ErrMalformed
			}
			ctrl.Criticality = b
			idx++
		}
		if idx < len(c.Children) {
			ctrl.Value = c.Children[idx].Data.Bytes()
			ctrl.HasValue = true
		}
		out = append(out, ctrl)
	}
	return out, nil
}

// Release returns the envelope's backing frame buffer to the shared
// pool. Callers must not touch the envelope's Op packet after calling
// Release, since it aliases the returned buffer.
func (e *Envelope) Release() {
	if e.rawReleased || e.raw == nil {
		return
	}
	ReleaseEnvelope(e.raw)
	e.rawReleased = true
}

// EncodeMessage builds the raw bytes of an LDAPMessage wrapping op with
// the given messageID and no controls, the shape every response this
// proxy originates takes.
func EncodeMessage(messageID int64, op *asn1ber.Packet) []byte {
	msg := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "LDAPMessage")
	msg.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, messageID, "messageID"))
	msg.AppendChild(op)
	return msg.Bytes()
}

// EncodeMessageFromBytes rebuilds an LDAPMessage around a previously
// captured protocolOp encoding (as stored by the cache, with its own
// messageID already stripped at capture time), substituting messageID.
// It is the replay counterpart to storing op.Bytes() directly: cached
// PDUs are kept as pre-encoded bytes so replay never re-derives their
// contents, only the enclosing envelope.
func EncodeMessageFromBytes(messageID int64, opBytes []byte) ([]byte, error) {
	op := asn1ber.DecodePacket(opBytes)
	if op == nil {
		return nil, ErrMalformed
	}
	return EncodeMessage(messageID, op), nil
}

// RewriteMessageID re-encodes env (a decoded LDAPMessage) with its
// messageID integer replaced by newID, leaving the protocolOp and any
// controls untouched. It is used on the forward path, where the proxy
// multiplexes many client messageIDs onto one upstream connection with
// its own counter, and on the return path, where the upstream's
// messageID is rewritten back to the client's original value.
func RewriteMessageID(env *Envelope, newID int64) []byte {
	msg := asn1ber.Encode(asn1ber.ClassUniversal, asn1ber.TypeConstructed, asn1ber.TagSequence, nil, "LDAPMessage")
	msg.AppendChild(asn1ber.NewInteger(asn1ber.ClassUniversal, asn1ber.TypePrimitive, asn1ber.TagInteger, newID, "messageID"))
	msg.AppendChild(env.Op)
	if env.controlsPkt != nil {
		msg.AppendChild(env.controlsPkt)
	}
	return msg.Bytes()
}
