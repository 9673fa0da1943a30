package bus

// Pack splits data into words of width bits, width/8 bytes per word. A short
// final word is zero-padded after the data. With highFirst the first byte of
// each word lands in its most significant byte.
func Pack(data []byte, width int, highFirst bool) ([]Word, error) {
	if err := checkByteWidth(width); err != nil {
		return nil, err
	}

	n := width / 8
	words := make([]Word, 0, (len(data)+n-1)/n)

	for start := 0; start < len(data); start += n {
		end := start + n
		if end > len(data) {
			end = len(data)
		}

		words = append(words, packWord(data[start:end], n, highFirst))
	}

	return words, nil
}

func packWord(chunk []byte, n int, highFirst bool) Word {
	var w Word

	for i, b := range chunk {
		shift := uint(8 * i)
		if highFirst {
			shift = uint(8 * (n - 1 - i))
		}

		w |= Word(b) << shift
	}

	return w
}

// Unpack is the inverse of Pack. It returns width/8 bytes for every word,
// including any padding of the final word.
func Unpack(words []Word, width int, highFirst bool) ([]byte, error) {
	if err := checkByteWidth(width); err != nil {
		return nil, err
	}

	n := width / 8
	data := make([]byte, 0, len(words)*n)

	for _, w := range words {
		for i := 0; i < n; i++ {
			shift := uint(8 * i)
			if highFirst {
				shift = uint(8 * (n - 1 - i))
			}

			data = append(data, byte(w>>shift))
		}
	}

	return data, nil
}

// UnpackN unpacks words and drops the padding beyond the first n bytes.
func UnpackN(words []Word, width int, highFirst bool, n int) ([]byte, error) {
	data, err := Unpack(words, width, highFirst)
	if err != nil {
		return nil, err
	}

	if n > len(data) {
		return nil, protocolErrorf("",
			"%d bytes requested from %d words of %d bits", n, len(words), width)
	}

	return data[:n], nil
}

// PackBits slices a string of binary digits into width-bit words, starting at
// the least significant (rightmost) end. The first word holds the lowest
// bits; the last one is zero-extended.
func PackBits(bits string, width int) ([]Word, error) {
	if width <= 0 || width > 64 {
		return nil, protocolErrorf("", "width %d out of range", width)
	}

	var words []Word

	for end := len(bits); end > 0; end -= width {
		start := end - width
		if start < 0 {
			start = 0
		}

		var w Word

		for _, c := range bits[start:end] {
			switch c {
			case '0':
				w <<= 1
			case '1':
				w = w<<1 | 1
			default:
				return nil, protocolErrorf("", "invalid binary digit %q", c)
			}
		}

		words = append(words, w)
	}

	return words, nil
}

func checkByteWidth(width int) error {
	if width <= 0 || width > 64 || width%8 != 0 {
		return protocolErrorf("", "width %d is not a multiple of 8 up to 64", width)
	}

	return nil
}
