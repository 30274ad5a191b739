package protocol

// InputAck is sent by the server after it consumes client inputs.
// The client raises its window watermark to LastInputID and may stop
// resending anything at or below it.
type InputAck struct {
	LastInputID uint32 // Newest input the server has consumed
	Received    uint64 // Input frames received on this connection
}

// EncodeInputAck encodes an InputAck to bytes.
func EncodeInputAck(ack *InputAck) []byte {
	e := NewEncoderWithCap(UvarintLen(uint64(ack.LastInputID)) + UvarintLen(ack.Received))
	EncodeInputAckTo(e, ack)
	return e.Bytes()
}

// EncodeInputAckTo encodes an InputAck using the provided encoder.
func EncodeInputAckTo(e *Encoder, ack *InputAck) {
	e.WriteUvarint(uint64(ack.LastInputID))
	e.WriteUvarint(ack.Received)
}

// DecodeInputAck decodes an InputAck from bytes.
func DecodeInputAck(data []byte) (*InputAck, error) {
	return DecodeInputAckFrom(NewDecoder(data))
}

// DecodeInputAckFrom decodes an InputAck from a decoder.
func DecodeInputAckFrom(d *Decoder) (*InputAck, error) {
	last, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if last > 0xFFFFFFFF {
		return nil, ErrVarintOverflow
	}

	received, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	return &InputAck{
		LastInputID: uint32(last),
		Received:    received,
	}, nil
}
