package ber

import (
	"bufio"
	"io"

	asn1ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sonroyaalmerol/ldap-proxy/internal/helpers"
	"github.com/sonroyaalmerol/ldap-proxy/internal/pool"
)

// bufPool recycles the byte slices used to hold one framed LDAPMessage
// while it is read off the wire, avoiding an allocation per message on
// the hot path.
var bufPool = pool.New(func() []byte {
	return make([]byte, 0, 4096)
})

// ReadEnvelope reads exactly one BER TLV frame (expected to be the
// top-level LDAPMessage SEQUENCE) from r, enforcing maxSize as a ceiling
// on the total frame size (header + contents) and rejecting the
// indefinite-length form, which RFC 4511 forbids for LDAP PDUs.
//
// It returns the raw frame bytes (suitable for forwarding verbatim or
// for hashing) and the parsed packet. The caller is responsible for
// passing the returned buffer back to ReleaseEnvelope once done with it.
func ReadEnvelope(r *bufio.Reader, maxSize int) ([]byte, *asn1ber.Packet, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, nil, err
	}

	length, headerLen, err := readLength(r)
	if err != nil {
		return nil, nil, err
	}

	total := 1 + headerLen + length
	if maxSize > 0 && total > maxSize {
		return nil, nil, ErrInputTooLarge
	}

	buf := bufPool.Get()
	if cap(buf) < total {
		buf = make([]byte, total)
	} else {
		buf = buf[:total]
	}
	buf[0] = tagByte
	if err := encodeLengthInto(buf[1:1+headerLen], length); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(r, buf[1+headerLen:]); err != nil {
		return nil, nil, ErrTruncated
	}

	packet := asn1ber.DecodePacket(buf)
	if packet == nil {
		return nil, nil, ErrMalformed
	}
	return buf, packet, nil
}

// ReleaseEnvelope returns a frame buffer obtained from ReadEnvelope to
// the pool for reuse.
func ReleaseEnvelope(buf []byte) {
	bufPool.Put(buf[:0]) //nolint:staticcheck // intentional reuse, cap retained
}

// readLength reads a BER length field (short or long form) from r and
// returns the decoded length together with the number of bytes the
// length field itself occupied. The indefinite form (0x80) is rejected.
func readLength(r *bufio.Reader) (length int, headerLen int, err error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	if first&0x80 == 0 {
		// Short form: the byte itself is the length.
		return int(first), 1, nil
	}

	numOctets := int(first & 0x7f)
	if numOctets == 0 {
		return 0, 0, ErrIndefiniteLength
	}
	if numOctets > 4 {
		// A length field this wide implies a frame far beyond any
		// sane LDAP message; treat it as an oversize frame rather
		// than risk an int overflow.
		return 0, 0, ErrInputTooLarge
	}

	length = 0
	for i := 0; i < numOctets; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		length = length<<8 | int(b)
	}
	return length, 1 + numOctets, nil
}

// encodeLengthInto writes the BER length field for length into dst,
// reproducing whatever form (short or long) headerLen implies. It is
// used to reconstruct the frame header already consumed by readLength
// into the scratch buffer that holds the whole frame. length is
// clamped into the uint32 range a BER length field can actually carry
// (readLength already rejects anything wider) before it is shifted
// apart into octets.
func encodeLengthInto(dst []byte, length int) error {
	l := helpers.ClampIntToUint32(length)

	if len(dst) == 1 {
		dst[0] = byte(l)
		return nil
	}

	numOctets := len(dst) - 1
	dst[0] = 0x80 | byte(numOctets)
	for i := numOctets; i >= 1; i-- {
		dst[i] = byte(l)
		l >>= 8
	}
	return nil
}
