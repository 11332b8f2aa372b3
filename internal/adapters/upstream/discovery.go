package upstream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SOOD is the UDP discovery protocol Roon Cores answer on.
const (
	soodPort      = 9003
	soodMulticast = "239.255.90.90"
	soodVersion   = 2
	soodQuery     = 'Q'
	soodReply     = 'R'
	soodResend    = time.Second

	// roonServiceID is the SOOD service id of a Roon Core.
	roonServiceID = "00720724-5143-4a9b-abac-0e50cba674bb"
)

var (
	ErrNoController = errors.New("no controller found")
	errBadSOOD      = errors.New("bad sood packet")
)

var soodTargets = []string{
	net.JoinHostPort(soodMulticast, strconv.Itoa(soodPort)),
	net.JoinHostPort("255.255.255.255", strconv.Itoa(soodPort)),
}

type soodProp struct {
	Key   string
	Value string
}

// Discover queries the local network over SOOD and returns host:http_port of
// the first Roon Core that answers.
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	return discoverSOOD(ctx, timeout, soodTargets)
}

func discoverSOOD(ctx context.Context, timeout time.Duration, targets []string) (string, error) {
	dsts := make([]*net.UDPAddr, 0, len(targets))
	for _, t := range targets {
		addr, err := net.ResolveUDPAddr("udp4", t)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", t, err)
		}
		dsts = append(dsts, addr)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return "", fmt.Errorf("listen udp: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tid := uuid.NewString()
	query := encodeSOOD(soodQuery, []soodProp{
		{Key: "query_service_id", Value: roonServiceID},
		{Key: "_tid", Value: tid},
	})
	buf := make([]byte, 4096)

	for ctx.Err() == nil {
		for _, dst := range dsts {
			if _, err := conn.WriteToUDP(query, dst); err != nil {
				log.Debug().Err(err).Str("module", "upstream").Str("target", dst.String()).Msg("sood query")
			}
		}

		deadline := time.Now().Add(soodResend)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return "", fmt.Errorf("set read deadline: %w", err)
		}

		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					break
				}
				return "", fmt.Errorf("read sood: %w", err)
			}
			kind, props, err := parseSOOD(buf[:n])
			if err != nil || kind != soodReply || props["service_id"] != roonServiceID {
				continue
			}
			if got, ok := props["_tid"]; ok && got != tid {
				continue
			}
			port := props["http_port"]
			if port == "" {
				continue
			}
			addr := net.JoinHostPort(from.IP.String(), port)
			log.Info().
				Str("module", "upstream").
				Str("name", props["name"]).
				Str("unique_id", props["unique_id"]).
				Str("addr", addr).
				Msg("discovered controller")
			return addr, nil
		}
	}
	return "", ErrNoController
}

// encodeSOOD lays out "SOOD", version, type, then each property as a
// one-byte key length, key, two-byte big endian value length, value.
func encodeSOOD(kind byte, props []soodProp) []byte {
	b := []byte{'S', 'O', 'O', 'D', soodVersion, kind}
	for _, p := range props {
		b = append(b, byte(len(p.Key)))
		b = append(b, p.Key...)
		b = binary.BigEndian.AppendUint16(b, uint16(len(p.Value)))
		b = append(b, p.Value...)
	}
	return b
}

// parseSOOD reads a packet. A value length of 0xffff marks a null value,
// kept as an empty string.
func parseSOOD(data []byte) (byte, map[string]string, error) {
	if len(data) < 6 || string(data[:4]) != "SOOD" || data[4] != soodVersion {
		return 0, nil, errBadSOOD
	}
	kind := data[5]
	props := make(map[string]string)
	for pos := 6; pos < len(data); {
		klen := int(data[pos])
		pos++
		if klen == 0 || pos+klen+2 > len(data) {
			return 0, nil, errBadSOOD
		}
		key := string(data[pos : pos+klen])
		pos += klen
		vlen := int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
		if vlen == 0xffff {
			props[key] = ""
			continue
		}
		if pos+vlen > len(data) {
			return 0, nil, errBadSOOD
		}
		props[key] = string(data[pos : pos+vlen])
		pos += vlen
	}
	return kind, props, nil
}
