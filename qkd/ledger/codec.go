package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// Field numbers of the Record wire message. These are part of the export
// format and must never be renumbered.
const (
	fieldIndex        protowire.Number = 1
	fieldAliceBit     protowire.Number = 2
	fieldAliceBasis   protowire.Number = 3
	fieldAliceSetting protowire.Number = 4
	fieldBobSetting   protowire.Number = 5
	fieldEve          protowire.Number = 6
	fieldBobBasis     protowire.Number = 7
	fieldDetected     protowire.Number = 8
	fieldDarkCount    protowire.Number = 9
	fieldBobBit       protowire.Number = 10
	fieldConclusive   protowire.Number = 11
	fieldInKey        protowire.Number = 12
	fieldForCHSH      protowire.Number = 13

	fieldEveBasis   protowire.Number = 1
	fieldEveSetting protowire.Number = 2
	fieldEveBit     protowire.Number = 3
)

// MaxFrameBytes bounds the size of a single framed record.
const MaxFrameBytes = 1 << 12

// A Writer writes framed Records. The structure of a frame is trivial:
// little-endian int32 length | protobuf wire-format Record.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer framing records onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames and writes a single Record.
func (w *Writer) Write(r Record) error {
	b := Marshal(r)
	if err := binary.Write(w.w, binary.LittleEndian, int32(len(b))); err != nil {
		return err
	}
	_, err := w.w.Write(b)
	return err
}

// WriteAll writes every Record in l, in order.
func (w *Writer) WriteAll(l Ledger) error {
	for _, r := range l {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("writing record %d: %w", r.Index, err)
		}
	}
	return nil
}

// A Reader reads Records framed by a Writer.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader consuming frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read returns the next Record, or io.EOF once the stream is exhausted at a
// frame boundary.
func (r *Reader) Read() (Record, error) {
	var n int32
	if err := binary.Read(r.r, binary.LittleEndian, &n); err != nil {
		return Record{}, err
	}
	if n < 0 || n > MaxFrameBytes {
		return Record{}, fmt.Errorf("invalid frame length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return Record{}, fmt.Errorf("reading frame: %w", err)
	}
	return Unmarshal(b)
}

// ReadAll reads Records until the end of the stream.
func (r *Reader) ReadAll() (Ledger, error) {
	var l Ledger
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return l, nil
		}
		if err != nil {
			return nil, err
		}
		l = append(l, rec)
	}
}

// Marshal encodes r in protobuf wire format. Zero-valued fields are omitted.
func Marshal(r Record) []byte {
	var b []byte
	b = appendUint(b, fieldIndex, uint64(r.Index))
	b = appendUint(b, fieldAliceBit, uint64(r.AliceBit))
	b = appendUint(b, fieldAliceBasis, uint64(r.AliceBasis))
	b = appendUint(b, fieldAliceSetting, uint64(r.AliceSetting))
	b = appendUint(b, fieldBobSetting, uint64(r.BobSetting))
	if r.Eve != nil {
		var e []byte
		e = appendUint(e, fieldEveBasis, uint64(r.Eve.Basis))
		e = appendUint(e, fieldEveSetting, uint64(r.Eve.Setting))
		e = appendUint(e, fieldEveBit, uint64(r.Eve.Bit))
		b = protowire.AppendTag(b, fieldEve, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	b = appendUint(b, fieldBobBasis, uint64(r.BobBasis))
	b = appendBool(b, fieldDetected, r.Detected)
	b = appendBool(b, fieldDarkCount, r.DarkCount)
	b = appendUint(b, fieldBobBit, uint64(r.BobBit))
	b = appendBool(b, fieldConclusive, r.Conclusive)
	b = appendBool(b, fieldInKey, r.InKey)
	b = appendBool(b, fieldForCHSH, r.ForCHSH)
	return b
}

// Unmarshal decodes a Record encoded by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (Record, error) {
	var r Record
	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case fieldIndex:
			r.Index = int(v)
		case fieldAliceBit:
			r.AliceBit = uint8(v)
		case fieldAliceBasis:
			r.AliceBasis = photon.Basis(v)
		case fieldAliceSetting:
			r.AliceSetting = Setting(v)
		case fieldBobSetting:
			r.BobSetting = Setting(v)
		case fieldEve:
			e, err := unmarshalInterception(raw)
			if err != nil {
				return fmt.Errorf("decoding interception: %w", err)
			}
			r.Eve = &e
		case fieldBobBasis:
			r.BobBasis = photon.Basis(v)
		case fieldDetected:
			r.Detected = v != 0
		case fieldDarkCount:
			r.DarkCount = v != 0
		case fieldBobBit:
			r.BobBit = uint8(v)
		case fieldConclusive:
			r.Conclusive = v != 0
		case fieldInKey:
			r.InKey = v != 0
		case fieldForCHSH:
			r.ForCHSH = v != 0
		}
		return nil
	})
	return r, err
}

func unmarshalInterception(b []byte) (Interception, error) {
	var e Interception
	err := consumeFields(b, func(num protowire.Number, v uint64, _ []byte) error {
		switch num {
		case fieldEveBasis:
			e.Basis = photon.Basis(v)
		case fieldEveSetting:
			e.Setting = Setting(v)
		case fieldEveBit:
			e.Bit = uint8(v)
		}
		return nil
	})
	return e, err
}

// consumeFields walks the fields in b, handing varints to f as v and
// length-delimited fields as raw.
func consumeFields(b []byte, f func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := f(num, v, raw); err != nil {
			return err
		}
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}
