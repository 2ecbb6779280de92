package persist

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/mwire"
)

// FriendDescriptor is the legacy, human-editable friend-descriptor file
// format `meshctl addfriend --file` reads, a light adaptation of
// original_source's components/proto/src/file.rs FriendFile /
// RelayAddressFile (which wrap a node's public key and advertised relay
// list for hand-distribution before any mutation log exists). The
// original used a typed serde/base64 encoding; this node has no toml/serde
// dependency anywhere in its corpus, so the same three fields are carried
// as plain "key value" lines instead -- see DESIGN.md for why a
// stdlib text scanner, not a new templating dependency, was kept for this
// one format.
type FriendDescriptor struct {
	PublicKey ccrypto.PublicKey
	Name      string
	Relays    []mwire.RelayAddress
}

// LoadFriendDescriptorFile parses a friend descriptor file in the format:
//
//	public_key <hex>
//	name <friend name>
//	relay <pubkey-hex> <host> <port>
//	relay <pubkey-hex> <host> <port>
//
// One or more "relay" lines may follow; "public_key" must appear first.
func LoadFriendDescriptorFile(path string) (*FriendDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFriendDescriptor(f)
}

// ParseFriendDescriptor reads one FriendDescriptor from r.
func ParseFriendDescriptor(r io.Reader) (*FriendDescriptor, error) {
	fd := &FriendDescriptor{}
	haveKey := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "public_key":
			if len(fields) != 2 {
				return nil, fmt.Errorf("persist: malformed public_key line %q", line)
			}
			pk, err := decodeHexPubKey(fields[1])
			if err != nil {
				return nil, err
			}
			fd.PublicKey = pk
			haveKey = true
		case "name":
			fd.Name = strings.Join(fields[1:], " ")
		case "relay":
			if len(fields) != 4 {
				return nil, fmt.Errorf("persist: malformed relay line %q", line)
			}
			pk, err := decodeHexPubKey(fields[1])
			if err != nil {
				return nil, err
			}
			port, err := strconv.ParseUint(fields[3], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("persist: bad relay port %q: %w", fields[3], err)
			}
			fd.Relays = append(fd.Relays, mwire.RelayAddress{
				PublicKey: pk,
				Host:      fields[2],
				Port:      uint16(port),
			})
		default:
			return nil, fmt.Errorf("persist: unknown friend descriptor field %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !haveKey {
		return nil, fmt.Errorf("persist: friend descriptor missing public_key")
	}
	return fd, nil
}

// WriteFriendDescriptorFile serializes fd back to the same format, used
// by `meshctl exportfriend`.
func WriteFriendDescriptorFile(path string, fd *FriendDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "public_key %s\n", hex.EncodeToString(fd.PublicKey[:]))
	if fd.Name != "" {
		fmt.Fprintf(w, "name %s\n", fd.Name)
	}
	for _, r := range fd.Relays {
		fmt.Fprintf(w, "relay %s %s %d\n", hex.EncodeToString(r.PublicKey[:]), r.Host, r.Port)
	}
	return w.Flush()
}

func decodeHexPubKey(s string) (ccrypto.PublicKey, error) {
	var pk ccrypto.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("persist: bad public key hex %q: %w", s, err)
	}
	if len(b) != ccrypto.PublicKeySize {
		return pk, fmt.Errorf("persist: public key must be %d bytes, got %d", ccrypto.PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}
