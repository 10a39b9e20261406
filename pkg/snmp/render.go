package snmp

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/gosnmp/gosnmp"
)

// RenderValue converts a PDU value into the raw string form consumed by the
// decoders. Binary octet strings render as "0x" followed by lowercase hex.
func RenderValue(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.Integer:
		return strconv.FormatInt(ParseInt64(pdu.Value), 10)
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
		return strconv.FormatUint(ParseUint64(pdu.Value), 10)
	case gosnmp.OctetString, gosnmp.BitString:
		b := ParseBytes(pdu.Value)
		if isPrintable(b) {
			return string(b)
		}
		return "0x" + hex.EncodeToString(b)
	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		return NormalizeOID(ParseString(pdu.Value))
	case gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		return fmt.Sprintf("%g", pdu.Value)
	default:
		return fmt.Sprintf("%v", pdu.Value)
	}
}

// isPrintable accepts text: no control bytes other than tab, LF and CR, and
// valid UTF-8 so that descriptions stay usable as label values.
func isPrintable(b []byte) bool {
	for _, c := range b {
		switch {
		case c == '\t', c == '\n', c == '\r':
		case c < 0x20, c == 0x7f:
			return false
		}
	}
	return utf8.Valid(b)
}

// Helper functions for parsing SNMP values

// ParseInt64 extracts an int64 from an SNMP value.
func ParseInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return gosnmp.ToBigInt(value).Int64()
	}
}

// ParseUint64 extracts a uint64 from an SNMP value.
func ParseUint64(value interface{}) uint64 {
	switch v := value.(type) {
	case uint:
		return uint64(v)
	case uint64:
		return v
	case uint32:
		return uint64(v)
	case int:
		return uint64(v)
	case int64:
		return uint64(v)
	default:
		return gosnmp.ToBigInt(value).Uint64()
	}
}

// ParseString extracts a string from an SNMP value.
func ParseString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseBytes extracts raw bytes from an SNMP value.
func ParseBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
