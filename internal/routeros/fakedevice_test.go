package routeros

import (
	"bufio"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
)

// fakeDevice is an in-process NAS speaking the sentence protocol over real
// TCP. Tests script its command handling; login is handled internally.
type fakeDevice struct {
	t  *testing.T
	ln net.Listener

	mu     sync.Mutex
	handle func(words []string) [][]string

	// login behavior
	rejectLogin    bool
	challengeLogin bool // answer the first /login with =ret= (pre-6.43 flow)
	password       string
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDevice{t: t, ln: ln, password: "testpass"}
	go d.serve()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDevice) config() DeviceConfig {
	return DeviceConfig{
		Host:     "127.0.0.1",
		Port:     d.ln.Addr().(*net.TCPAddr).Port,
		Username: "admin",
		Password: d.password,
		Version:  VersionV6,
	}
}

func (d *fakeDevice) setHandler(fn func(words []string) [][]string) {
	d.mu.Lock()
	d.handle = fn
	d.mu.Unlock()
}

func (d *fakeDevice) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.session(conn)
	}
}

func (d *fakeDevice) session(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		words, err := readRequestWords(r)
		if err != nil {
			return
		}
		for _, reply := range d.dispatch(words) {
			if err := writeSentence(conn, reply); err != nil {
				return
			}
		}
	}
}

func (d *fakeDevice) dispatch(words []string) [][]string {
	d.mu.Lock()
	handle := d.handle
	reject := d.rejectLogin
	challenge := d.challengeLogin
	d.mu.Unlock()

	if words[0] == "/login" {
		attrs := wordsToAttrs(words[1:])
		switch {
		case reject:
			return [][]string{
				{"!trap", "=message=invalid user name or password (6)"},
				{"!done"},
			}
		case challenge && attrs["response"] == "":
			return [][]string{{"!done", "=ret=" + loginChallengeHex}}
		case challenge:
			if attrs["response"] != challengeResponse(d.password) {
				return [][]string{
					{"!trap", "=message=invalid user name or password (6)"},
					{"!done"},
				}
			}
			return [][]string{{"!done"}}
		default:
			return [][]string{{"!done"}}
		}
	}

	if handle != nil {
		return handle(words)
	}
	return [][]string{{"!done"}}
}

const loginChallengeHex = "0102030405060708090a0b0c0d0e0f10"

func challengeResponse(password string) string {
	chal, _ := hex.DecodeString(loginChallengeHex)
	h := md5.New() //nolint:gosec
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write(chal)
	return "00" + hex.EncodeToString(h.Sum(nil))
}

// readRequestWords reads one raw command sentence, no reply-marker decoding.
func readRequestWords(r *bufio.Reader) ([]string, error) {
	var words []string
	for {
		w, err := readWord(r)
		if err != nil {
			if err == io.EOF && len(words) == 0 {
				return nil, io.EOF
			}
			return nil, err
		}
		if w == "" {
			if len(words) == 0 {
				continue
			}
			return words, nil
		}
		words = append(words, w)
	}
}

// wordsToAttrs parses "=key=value" and "?key=value" words into a map.
func wordsToAttrs(words []string) map[string]string {
	attrs := make(map[string]string, len(words))
	for _, w := range words {
		if strings.HasPrefix(w, "=") || strings.HasPrefix(w, "?") {
			if k, v, ok := strings.Cut(w[1:], "="); ok {
				attrs[k] = v
			}
		}
	}
	return attrs
}
