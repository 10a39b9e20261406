package snmp

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NoDataSentinel is the signed 32-bit maximum the OLT reports when it has no reading.
const NoDataSentinel = 2147483647

const (
	// OfflineReading replaces a power reading equal to NoDataSentinel.
	OfflineReading = "offline"
	// NoData replaces a board temperature equal to NoDataSentinel.
	NoData = "no-data"
)

const (
	hexPrefix       = "0x"
	serialPrefixLen = 2

	ticksPerDay    = 8_640_000
	ticksPerHour   = 360_000
	ticksPerMinute = 6_000
)

// DecodeStatus maps "1" to online and "2" to offline. Any other value is
// dropped, so the result may be shorter than raw.
func DecodeStatus(raw []string) []ONUStatus {
	out := make([]ONUStatus, 0, len(raw))
	for _, v := range raw {
		if s, ok := decodeStatusValue(v); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeStatusValue(v string) (ONUStatus, bool) {
	switch v {
	case "1":
		return StatusOnline, true
	case "2":
		return StatusOffline, true
	}
	return "", false
}

// DecodeDescription returns the descriptions unchanged.
func DecodeDescription(raw []string) []string {
	out := make([]string, len(raw))
	copy(out, raw)
	return out
}

// DateAndTime is a decoded SNMPv2-TC DateAndTime. Values are kept as reported,
// without range normalisation.
type DateAndTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// String formats the value as DD-MM-YYYY HH:MM:SS.
func (d DateAndTime) String() string {
	return fmt.Sprintf("%02d-%02d-%d %02d:%02d:%02d",
		d.Day, d.Month, d.Year, d.Hour, d.Minute, d.Second)
}

// Time converts the value to a time.Time in loc. Out-of-range fields are
// normalised by time.Date.
func (d DateAndTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

// stripEncodingPrefix removes prefix from raw and checks that the remainder
// is non-empty hex.
func stripEncodingPrefix(raw, prefix string) (string, error) {
	if !strings.HasPrefix(raw, prefix) {
		return "", fmt.Errorf("missing %q prefix", prefix)
	}
	payload := raw[len(prefix):]
	if payload == "" {
		return "", fmt.Errorf("empty payload after %q", prefix)
	}
	if _, err := hex.DecodeString(payload); err != nil {
		return "", fmt.Errorf("payload is not hex: %v", err)
	}
	return payload, nil
}

// ParseDateAndTime decodes a "0x"-prefixed DateAndTime octet string. Both the
// 11-byte form with timezone and the 8-byte form without it are accepted; the
// timezone bytes are ignored.
func ParseDateAndTime(raw string) (DateAndTime, error) {
	payload, err := stripEncodingPrefix(strings.ToLower(raw), hexPrefix)
	if err != nil {
		return DateAndTime{}, err
	}
	if len(payload) != 22 && len(payload) != 16 {
		return DateAndTime{}, fmt.Errorf("expected 8 or 11 bytes, got %d hex characters", len(payload))
	}
	b, _ := hex.DecodeString(payload)
	return DateAndTime{
		Year:   int(b[0])<<8 | int(b[1]),
		Month:  int(b[2]),
		Day:    int(b[3]),
		Hour:   int(b[4]),
		Minute: int(b[5]),
		Second: int(b[6]),
	}, nil
}

// DecodeLastDowntime formats every DateAndTime as DD-MM-YYYY HH:MM:SS.
// The first malformed value fails the whole call.
func DecodeLastDowntime(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, v := range raw {
		d, err := ParseDateAndTime(v)
		if err != nil {
			return nil, NewDecodeError(MetricLastDowntime, i, v, err.Error())
		}
		out = append(out, d.String())
	}
	return out, nil
}

// DecodeLastDownCause maps down-cause codes to labels. It never fails.
func DecodeLastDownCause(raw []string) []DownCause {
	out := make([]DownCause, len(raw))
	for i, v := range raw {
		out[i] = decodeDownCauseValue(v)
	}
	return out
}

func decodeDownCauseValue(v string) DownCause {
	switch v {
	case "2":
		return CauseLOS
	case "13":
		return CauseDyingGasp
	case "-1":
		return CauseNoInfo
	default:
		return CauseUnknown
	}
}

// DecodePower converts hundredths of dBm to a two-decimal reading.
// NoDataSentinel becomes OfflineReading.
func DecodePower(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, v := range raw {
		p, err := decodePowerValue(v)
		if err != nil {
			return nil, NewDecodeError(MetricPower, i, v, err.Error())
		}
		out = append(out, p)
	}
	return out, nil
}

func decodePowerValue(v string) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return "", fmt.Errorf("not an integer")
	}
	if n == NoDataSentinel {
		return OfflineReading, nil
	}
	return strconv.FormatFloat(float64(n)/100, 'f', 2, 64), nil
}

// ParsePowerReading converts a decoded power string back to dBm.
// ok is false for OfflineReading or unparseable input.
func ParsePowerReading(s string) (dbm float64, ok bool) {
	if s == OfflineReading {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// DecodeSerial strips the 2-character encoding prefix and upper-cases the rest.
func DecodeSerial(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, v := range raw {
		s, err := decodeSerialValue(v)
		if err != nil {
			return nil, NewDecodeError(MetricSerial, i, v, err.Error())
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSerialValue(v string) (string, error) {
	if len(v) <= serialPrefixLen {
		return "", fmt.Errorf("shorter than the %d-character prefix plus payload", serialPrefixLen)
	}
	return strings.ToUpper(v[serialPrefixLen:]), nil
}

// SerialVendorID renders the 4-byte vendor part of a hex serial as ASCII,
// e.g. 485754430011D168 -> HWTC0011D168. Anything else is returned unchanged.
func SerialVendorID(serial string) string {
	if len(serial) < 8 {
		return serial
	}
	vendor, err := hex.DecodeString(serial[:8])
	if err != nil {
		return serial
	}
	for _, c := range vendor {
		if c < 'A' || c > 'Z' {
			return serial
		}
	}
	return string(vendor) + serial[8:]
}

// DecodeBoardTemperature passes integer readings through and replaces
// NoDataSentinel with NoData.
func DecodeBoardTemperature(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, v := range raw {
		t, err := decodeBoardTemperatureValue(v)
		if err != nil {
			return nil, NewDecodeError(MetricBoardTemperature, i, v, err.Error())
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeBoardTemperatureValue(v string) (string, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return "", fmt.Errorf("not an integer")
	}
	if n == NoDataSentinel {
		return NoData, nil
	}
	return v, nil
}

// DecodeUptime splits a sysUpTime tick count (centiseconds) into days, hours
// and minutes. Only the first element of raw is used.
//
// With legacy set the hours and minutes are taken from the remainder of the
// fractional day divided by its own integer part. That form is undefined for
// uptimes under one day or within the first hour of a day, and those inputs return a
// DecodeError.
func DecodeUptime(raw []string, legacy bool) (Uptime, error) {
	if len(raw) == 0 {
		return Uptime{}, NewDecodeError(MetricUptime, 0, "", "no value returned")
	}
	ticks, err := strconv.ParseUint(strings.TrimSpace(raw[0]), 10, 64)
	if err != nil {
		return Uptime{}, NewDecodeError(MetricUptime, 0, raw[0], "not a non-negative integer")
	}
	if legacy {
		return legacyUptime(raw[0], ticks)
	}
	return Uptime{
		Days:    int(ticks / ticksPerDay),
		Hours:   int(ticks % ticksPerDay / ticksPerHour),
		Minutes: int(ticks % ticksPerHour / ticksPerMinute),
	}, nil
}

func legacyUptime(raw string, ticks uint64) (Uptime, error) {
	total := float64(ticks) / 60 / 60 / 24 / 100
	days := math.Trunc(total)
	if days == 0 {
		return Uptime{}, NewDecodeError(MetricUptime, 0, raw, "legacy arithmetic undefined below one day")
	}
	hours := math.Mod(total, days) * 24
	if math.Trunc(hours) == 0 {
		return Uptime{}, NewDecodeError(MetricUptime, 0, raw, "legacy arithmetic undefined in the first hour of a day")
	}
	minutes := math.Mod(hours, math.Trunc(hours)) * 60
	return Uptime{
		Days:    int(days),
		Hours:   int(hours),
		Minutes: int(minutes),
	}, nil
}
