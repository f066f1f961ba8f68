package kadmintransport

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/twmb/franz-go/pkg/kbin"
	"github.com/twmb/franz-go/pkg/sasl"
)

// authenticate runs mechanism's challenge/response loop over conn using
// the same length-prefixed framing as ordinary requests, one exchange
// per Authenticate/Challenge round trip, mirroring the handshake loop
// pkg/kgo's SASL-enabled brokerCxn runs before a connection is handed
// back to the pool.
func authenticate(ctx context.Context, conn net.Conn, mechanism sasl.Mechanism, host string) error {
	session, initial, err := mechanism.Authenticate(ctx, host)
	if err != nil {
		return fmt.Errorf("sasl %s: building initial response: %w", mechanism.Name(), err)
	}

	if err := writeFrame(conn, initial); err != nil {
		return fmt.Errorf("sasl %s: writing initial response: %w", mechanism.Name(), err)
	}

	for {
		challenge, err := readFrame(conn)
		if err != nil {
			return fmt.Errorf("sasl %s: reading challenge: %w", mechanism.Name(), err)
		}
		done, resp, err := session.Challenge(challenge)
		if err != nil {
			return fmt.Errorf("sasl %s: %w", mechanism.Name(), err)
		}
		if done {
			return nil
		}
		if err := writeFrame(conn, resp); err != nil {
			return fmt.Errorf("sasl %s: writing challenge response: %w", mechanism.Name(), err)
		}
	}
}

func writeFrame(conn net.Conn, body []byte) error {
	buf := kbin.AppendInt32(nil, int32(len(body)))
	buf = append(buf, body...)
	_, err := conn.Write(buf)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return nil, err
	}
	r := kbin.Reader{Src: sizeBuf[:]}
	size := r.Int32()
	body := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}
