package dns

// Question represents a DNS question section entry (RFC 1035 Section 4.1.2).
// Class is always IN (1) on the wire and is ignored on read.
type Question struct {
	Name string
	Type QueryType
}

// BinaryLen reports the byte length the question would occupy when written,
// used to budget size before the record sections are encoded.
func (q Question) BinaryLen(buf PacketBuffer) (int, error) {
	n, err := buf.QNameLen(q.Name)
	if err != nil {
		return 0, err
	}
	return n + 4, nil
}

// Write serializes the question to buf.
func (q Question) Write(buf PacketBuffer) error {
	if err := buf.WriteQName(q.Name); err != nil {
		return err
	}
	if err := buf.WriteU16(q.Type.Num()); err != nil {
		return err
	}
	return buf.WriteU16(1) // class IN
}

// Read parses a question from buf.
func (q *Question) Read(buf PacketBuffer) error {
	name, err := buf.ReadQName()
	if err != nil {
		return err
	}
	q.Name = name

	t, err := buf.ReadU16()
	if err != nil {
		return err
	}
	q.Type = QueryTypeFromNum(t)

	_, err = buf.ReadU16() // class, ignored per spec
	return err
}
