package snmp

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
)

// Binding is one walked leaf: its OID, PDU type and rendered value.
type Binding struct {
	OID   string
	Type  gosnmp.Asn1BER
	Value string
}

// Walker enumerates every leaf under a root OID over a single SNMP session.
// It never retries; transport retries are configured on the handler.
type Walker struct {
	handler gosnmp.Handler
	target  string

	// MaxRepetitions > 0 uses GETBULK on v2c sessions.
	MaxRepetitions uint32
	Logger         zerolog.Logger
}

// NewWalker binds a walker to a connected handler. target names the device in errors.
func NewWalker(handler gosnmp.Handler, target string) *Walker {
	return &Walker{
		handler: handler,
		target:  target,
		Logger:  zerolog.Nop(),
	}
}

// Walk returns the rendered value of every leaf under root, in agent order.
func (w *Walker) Walk(ctx context.Context, root string) ([]string, error) {
	bindings, err := w.WalkBindings(ctx, root)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(bindings))
	for i, b := range bindings {
		values[i] = b.Value
	}
	return values, nil
}

// WalkBindings walks root and keeps the OID of every leaf.
// On any error no partial results are returned.
func (w *Walker) WalkBindings(ctx context.Context, root string) ([]Binding, error) {
	root = NormalizeOID(root)
	if !ValidOID(root) {
		return nil, NewConfigurationError("oid", root, "must be dot-separated non-negative integers")
	}

	start := time.Now()
	bulk := w.MaxRepetitions > 0 && w.handler.Version() != gosnmp.Version1
	current := root
	var out []Binding

walk:
	for {
		if err := ctx.Err(); err != nil {
			return nil, NewCommunicationError(w.target, root, err)
		}

		var (
			pkt *gosnmp.SnmpPacket
			err error
		)
		if bulk {
			pkt, err = w.handler.GetBulk([]string{current}, 0, w.MaxRepetitions)
		} else {
			pkt, err = w.handler.GetNext([]string{current})
		}
		if err != nil {
			return nil, NewCommunicationError(w.target, root, err)
		}
		if pkt == nil {
			return nil, NewCommunicationError(w.target, root, fmt.Errorf("empty response"))
		}

		if pkt.Error != gosnmp.NoError {
			// SNMPv1 agents signal end of MIB with noSuchName.
			if pkt.Error == gosnmp.NoSuchName && w.handler.Version() == gosnmp.Version1 {
				break
			}
			return nil, NewProtocolError(w.target, root, pkt.Error, int(pkt.ErrorIndex), "")
		}
		if len(pkt.Variables) == 0 {
			break
		}

		for i, pdu := range pkt.Variables {
			if pdu.Type == gosnmp.EndOfMibView {
				break walk
			}
			name := NormalizeOID(pdu.Name)
			if !InSubtree(name, root) {
				break walk
			}
			if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance {
				return nil, NewProtocolError(w.target, root, gosnmp.NoSuchName, i+1,
					fmt.Sprintf("%s for %s", pdu.Type, name))
			}
			if CompareOID(name, current) <= 0 {
				return nil, NewProtocolError(w.target, root, gosnmp.GenErr, i+1,
					fmt.Sprintf("OID not increasing: %s after %s", name, current))
			}
			out = append(out, Binding{
				OID:   name,
				Type:  pdu.Type,
				Value: RenderValue(pdu),
			})
			current = name
		}
	}

	w.Logger.Debug().
		Str("target", w.target).
		Str("root", root).
		Int("bindings", len(out)).
		Dur("took", time.Since(start)).
		Msg("walk complete")

	return out, nil
}
