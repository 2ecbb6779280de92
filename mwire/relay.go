package mwire

import (
	"fmt"
	"io"

	"github.com/creditmesh/meshnode/ccrypto"
)

// RelayAddress is the advertised contact point a friend last published for
// itself. The relay/channeler transport that dials these addresses is out
// of scope (spec.md §1); this type only carries the opaque bytes the
// token-channel layer must hash and chain-verify (spec.md §4.3 step 4:
// "if the peer sent us new advertised relays, store them").
type RelayAddress struct {
	PublicKey ccrypto.PublicKey
	Host      string
	Port      uint16
}

func writeRelay(w io.Writer, addr RelayAddress) error {
	if err := writePubKey(w, addr.PublicKey); err != nil {
		return err
	}
	if len(addr.Host) > 255 {
		return fmt.Errorf("relay host too long: %d", len(addr.Host))
	}
	if _, err := w.Write([]byte{byte(len(addr.Host))}); err != nil {
		return err
	}
	if _, err := io.WriteString(w, addr.Host); err != nil {
		return err
	}
	return writeUint16(w, addr.Port)
}

func readRelay(r io.Reader) (RelayAddress, error) {
	var addr RelayAddress
	var err error
	if addr.PublicKey, err = readPubKey(r); err != nil {
		return addr, err
	}
	var l [1]byte
	if _, err = io.ReadFull(r, l[:]); err != nil {
		return addr, err
	}
	buf := make([]byte, l[0])
	if _, err = io.ReadFull(r, buf); err != nil {
		return addr, err
	}
	addr.Host = string(buf)
	if addr.Port, err = readUint16(r); err != nil {
		return addr, err
	}
	return addr, nil
}

// writeRelayList encodes an (possibly empty/nil) relay list as a 1-byte
// count followed by each encoded relay -- this concatenation is exactly
// canonical(opt_local_relays) from spec.md §4.3.
func writeRelayList(w io.Writer, relays []RelayAddress) error {
	if len(relays) > 255 {
		return fmt.Errorf("too many relays: %d", len(relays))
	}
	if _, err := w.Write([]byte{byte(len(relays))}); err != nil {
		return err
	}
	for _, addr := range relays {
		if err := writeRelay(w, addr); err != nil {
			return err
		}
	}
	return nil
}

func readRelayList(r io.Reader) ([]RelayAddress, error) {
	var l [1]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, err
	}
	if l[0] == 0 {
		return nil, nil
	}
	out := make([]RelayAddress, l[0])
	for i := range out {
		var err error
		if out[i], err = readRelay(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
