package routeros

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// The RouterOS API frames every word with a variable-length size prefix and
// terminates a sentence with a zero-length word. The prefix encoding mirrors
// UTF-8's leading-bit scheme:
//
//	< 0x80        1 byte
//	< 0x4000      2 bytes, high bits 10
//	< 0x200000    3 bytes, high bits 110
//	< 0x10000000  4 bytes, high bits 1110
//	otherwise     5 bytes, lead byte 0xF0
//
// Reply sentences open with a marker word: !re (data row), !done (terminator),
// !trap (command error), or !fatal (connection-killing error). Attribute words
// are "=key=value"; values stay strings at this layer.

// Reply marker words.
const (
	wordData  = "!re"
	wordDone  = "!done"
	wordTrap  = "!trap"
	wordFatal = "!fatal"
)

// record is one decoded reply sentence: its marker and attribute map.
type record struct {
	marker string
	attrs  map[string]string
}

// encodeLength appends the RouterOS length prefix for n to buf.
func encodeLength(buf []byte, n int) ([]byte, error) {
	switch {
	case n < 0x80:
		return append(buf, byte(n)), nil
	case n < 0x4000:
		return append(buf, byte(n>>8)|0x80, byte(n)), nil
	case n < 0x200000:
		return append(buf, byte(n>>16)|0xC0, byte(n>>8), byte(n)), nil
	case n < 0x10000000:
		return append(buf, byte(n>>24)|0xE0, byte(n>>16), byte(n>>8), byte(n)), nil
	default:
		return append(buf, 0xF0, byte(n>>24), byte(n>>16), byte(n>>8), byte(n)), nil
	}
}

// writeSentence encodes the words followed by the empty terminator word.
// The whole sentence is written in one Write call so a deadline applies to
// the complete frame.
func writeSentence(w io.Writer, words []string) error {
	var buf []byte
	var err error
	for _, word := range words {
		if buf, err = encodeLength(buf, len(word)); err != nil {
			return &ProtocolError{Op: "encode", Err: err}
		}
		buf = append(buf, word...)
	}
	buf = append(buf, 0x00) // sentence terminator
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write sentence: %w", err)
	}
	return nil
}

// readLength decodes one word-length prefix.
func readLength(r *bufio.Reader) (int, error) {
	b0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	var n int
	var more int
	switch {
	case b0&0x80 == 0x00:
		return int(b0), nil
	case b0&0xC0 == 0x80:
		n, more = int(b0&^0x80), 1
	case b0&0xE0 == 0xC0:
		n, more = int(b0&^0xC0), 2
	case b0&0xF0 == 0xE0:
		n, more = int(b0&^0xE0), 3
	case b0 == 0xF0:
		n, more = 0, 4
	default:
		// 0xF8..0xFF are reserved control bytes; receiving one means the
		// stream is not a RouterOS API reply.
		return 0, &ProtocolError{Op: "read length", Err: fmt.Errorf("reserved control byte 0x%02X", b0)}
	}

	for i := 0; i < more; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, &ProtocolError{Op: "read length", Err: fmt.Errorf("truncated length prefix: %w", err)}
		}
		n = n<<8 | int(b)
	}
	return n, nil
}

// readWord reads one length-prefixed word. A zero-length word ends a sentence.
func readWord(r *bufio.Reader) (string, error) {
	n, err := readLength(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", &ProtocolError{Op: "read word", Err: fmt.Errorf("truncated word (%d bytes): %w", n, err)}
	}
	return string(buf), nil
}

// readSentence reads words until the empty terminator and decodes them into
// a record. io.EOF before any word is passed through so callers can detect a
// clean close; EOF mid-sentence is a ProtocolError.
func readSentence(r *bufio.Reader) (*record, error) {
	var words []string
	for {
		word, err := readWord(r)
		if err != nil {
			if err == io.EOF && len(words) == 0 {
				return nil, io.EOF
			}
			if pe, ok := err.(*ProtocolError); ok {
				return nil, pe
			}
			return nil, &ProtocolError{Op: "read sentence", Err: err}
		}
		if word == "" {
			if len(words) == 0 {
				// Empty sentence: skip and keep reading.
				continue
			}
			break
		}
		words = append(words, word)
	}
	return decodeRecord(words)
}

// decodeRecord interprets a reply sentence's words.
func decodeRecord(words []string) (*record, error) {
	marker := words[0]
	switch marker {
	case wordData, wordDone, wordTrap, wordFatal:
	default:
		return nil, &ProtocolError{Op: "decode", Err: fmt.Errorf("unknown reply marker %q", marker)}
	}

	rec := &record{marker: marker, attrs: make(map[string]string, len(words)-1)}
	for _, word := range words[1:] {
		switch {
		case strings.HasPrefix(word, "="):
			key, value, ok := strings.Cut(word[1:], "=")
			if !ok {
				return nil, &ProtocolError{Op: "decode", Err: fmt.Errorf("attribute word %q missing value separator", word)}
			}
			rec.attrs[key] = value
		case strings.HasPrefix(word, "."):
			// API attribute (".tag="); keep the leading dot as part of the key.
			key, value, ok := strings.Cut(word, "=")
			if !ok {
				return nil, &ProtocolError{Op: "decode", Err: fmt.Errorf("api attribute word %q missing value separator", word)}
			}
			rec.attrs[key] = value
		default:
			// !fatal carries its reason as a bare word.
			if marker == wordFatal {
				rec.attrs["message"] = word
				continue
			}
			return nil, &ProtocolError{Op: "decode", Err: fmt.Errorf("unexpected bare word %q in %s reply", word, marker)}
		}
	}
	return rec, nil
}

// command assembles a sentence for a device path with "=key=value" attribute
// and "?key=value" query words. Nil-safe on attrs.
func command(path string, attrs map[string]string, queries map[string]string) []string {
	words := make([]string, 0, 1+len(attrs)+len(queries))
	words = append(words, path)
	for k, v := range attrs {
		words = append(words, "="+k+"="+v)
	}
	for k, v := range queries {
		words = append(words, "?"+k+"="+v)
	}
	return words
}
