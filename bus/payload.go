package bus

// A BitString is a payload written as binary digits, most significant first.
type BitString string

// A WordSource yields pre-formed words until it returns false.
type WordSource interface {
	Next() (Word, bool)
}

// words converts a payload into the words to drive. Byte payloads are packed;
// every other accepted kind is driven word for word.
func (d *Driver) words(payload any) ([]Word, error) {
	width := d.bus.Width()

	switch p := payload.(type) {
	case []byte:
		if width%8 != 0 {
			return nil, protocolErrorf(d.name,
				"byte payload needs a data width that is a multiple of 8, got %d", width)
		}

		return Pack(p, width, d.config.FirstSymbolInHighOrderBits)
	case BitString:
		return PackBits(string(p), width)
	case Transaction:
		return p, nil
	case []Word:
		return p, nil
	case []uint64:
		return convert(p), nil
	case []uint32:
		return convert(p), nil
	case []uint16:
		return convert(p), nil
	case []int:
		return convert(p), nil
	case [][]uint16:
		var out []Word
		for _, row := range p {
			out = append(out, convert(row)...)
		}

		return out, nil
	case [][]Word:
		var out []Word
		for _, row := range p {
			out = append(out, row...)
		}

		return out, nil
	case WordSource:
		var out []Word
		for {
			w, ok := p.Next()
			if !ok {
				return out, nil
			}

			out = append(out, w)
		}
	case string:
		return nil, protocolErrorf(d.name, "hex string payloads are not supported")
	default:
		return nil, protocolErrorf(d.name, "unsupported payload type %T", payload)
	}
}

func convert[T uint64 | uint32 | uint16 | int](in []T) []Word {
	out := make([]Word, len(in))
	for i, v := range in {
		out[i] = Word(v)
	}

	return out
}
