package binstream

// Stream header: 3 magic bytes, 1 version byte, 1 preserve-references
// flag byte.
var streamMagic = [3]byte{0x32, 0x66, 0x34}

const streamVersion byte = 7

func writeHeader(w *Writer, preserveReferences bool) {
	w.WriteRaw(streamMagic[:])
	w.WriteByte_(streamVersion)
	if preserveReferences {
		w.WriteByte_(1)
	} else {
		w.WriteByte_(0)
	}
}

// readHeader consumes and validates the 5-byte header, returning
// whether the stream carries reference preservation.
func readHeader(r *Reader) (preserveReferences bool, err error) {
	got := r.ReadRaw(3)
	if r.Err() != nil {
		return false, r.Err()
	}
	var magic [3]byte
	copy(magic[:], got)
	if magic != streamMagic {
		return false, &WrongMagicError{Got: magic}
	}
	version := r.ReadByte_()
	if r.Err() != nil {
		return false, r.Err()
	}
	if version != streamVersion {
		return false, &WrongVersionError{Got: version}
	}
	flag := r.ReadByte_()
	if r.Err() != nil {
		return false, r.Err()
	}
	if flag != 0 && flag != 1 {
		return false, &StreamCorruptedError{Reason: "invalid preserve-references flag"}
	}
	return flag == 1, nil
}
