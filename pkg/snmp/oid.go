package snmp

import (
	"strconv"
	"strings"
)

// NormalizeOID strips leading dots and surrounding whitespace.
func NormalizeOID(oid string) string {
	return strings.TrimLeft(strings.TrimSpace(oid), ".")
}

// ValidOID reports whether oid is one or more dot-separated non-negative
// integers. Leading dots are tolerated and normalised away.
func ValidOID(oid string) bool {
	oid = NormalizeOID(oid)
	if oid == "" {
		return false
	}
	for _, part := range strings.Split(oid, ".") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// ScopedOID appends a PON suffix to a metric root. An empty pon returns the
// root itself, which walks the whole OLT.
func ScopedOID(root, pon string) (string, error) {
	root = NormalizeOID(root)
	if !ValidOID(root) {
		return "", NewConfigurationError("oid", root, "must be dot-separated non-negative integers")
	}
	pon = strings.TrimSpace(pon)
	if pon == "" {
		return root, nil
	}
	pon = NormalizeOID(pon)
	if !ValidOID(pon) {
		return "", NewConfigurationError("pon", pon, "must be dot-separated non-negative integers")
	}
	return root + "." + pon, nil
}

// InSubtree reports whether oid lies strictly below root.
func InSubtree(oid, root string) bool {
	return strings.HasPrefix(NormalizeOID(oid), NormalizeOID(root)+".")
}

// CompareOID orders two OIDs numerically, component by component.
// It returns -1, 0 or +1. Non-numeric components compare as strings.
func CompareOID(a, b string) int {
	pa := strings.Split(NormalizeOID(a), ".")
	pb := strings.Split(NormalizeOID(b), ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.ParseUint(pa[i], 10, 64)
		nb, errB := strconv.ParseUint(pb[i], 10, 64)
		if errA != nil || errB != nil {
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
			continue
		}
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// IndexSuffix returns the part of oid after root, without the separating dot.
// It returns "" when oid is not below root.
func IndexSuffix(oid, root string) string {
	oid = NormalizeOID(oid)
	root = NormalizeOID(root)
	if !strings.HasPrefix(oid, root+".") {
		return ""
	}
	return oid[len(root)+1:]
}

// DecodeIfIndex splits a Huawei GPON ifIndex into slot and port.
// MA5600T/MA5800 report 0xFA000000 + (slot << 13) + (port << 8).
func DecodeIfIndex(ifIndex int) (slot, port int) {
	v := uint32(ifIndex)
	if v&0xFF000000 == 0xFA000000 {
		return int(v>>13) & 0xFF, int(v>>8) & 0x1F
	}
	// Older firmware: (4096 * frame) + (256 * slot) + port
	return (ifIndex / 256) % 16, ifIndex % 16
}

// PortName renders an ONU index "ifIndex.ontId" as "slot/port:ont".
// Unparseable indices are returned unchanged.
func PortName(index string) string {
	parts := strings.Split(index, ".")
	if len(parts) != 2 {
		return index
	}
	ifIndex, err1 := strconv.Atoi(parts[0])
	ont, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return index
	}
	slot, port := DecodeIfIndex(ifIndex)
	return strconv.Itoa(slot) + "/" + strconv.Itoa(port) + ":" + strconv.Itoa(ont)
}
