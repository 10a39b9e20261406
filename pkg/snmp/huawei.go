package snmp

import (
	"context"
	"fmt"
)

// Huawei Enterprise OID and base paths
const (
	HuaweiEnterprise = "1.3.6.1.4.1.2011"
	HuaweiXPON       = HuaweiEnterprise + ".6.128.1.1"
)

// Huawei ONT Info OIDs (hwGponDeviceOntInfoTable)
var huaweiOntOIDs = struct {
	SerialNumber  string
	Description   string
	RunStatus     string
	LastDownTime  string
	LastDownCause string
}{
	SerialNumber:  HuaweiXPON + ".2.43.1.3",
	Description:   HuaweiXPON + ".2.43.1.9",
	RunStatus:     HuaweiXPON + ".2.46.1.15",
	LastDownTime:  HuaweiXPON + ".2.46.1.23",
	LastDownCause: HuaweiXPON + ".2.46.1.24",
}

// Huawei ONT Optical OIDs, values in 1/100 dBm
var huaweiOpticalOIDs = struct {
	RxPower    string
	OltRxPower string
}{
	RxPower:    HuaweiXPON + ".2.51.1.4",
	OltRxPower: HuaweiXPON + ".2.51.1.6",
}

// Device-wide OIDs, never scoped by PON
var huaweiDeviceOIDs = struct {
	BoardTemperature string
	SysUpTime        string
}{
	BoardTemperature: HuaweiEnterprise + ".2.6.7.1.1.2.1.10",
	SysUpTime:        "1.3.6.1.2.1.1.3",
}

// RootOID returns the subtree root walked for a metric. side only matters
// for MetricPower.
func RootOID(metric Metric, side PowerSide) (string, error) {
	switch metric {
	case MetricStatus:
		return huaweiOntOIDs.RunStatus, nil
	case MetricDescription:
		return huaweiOntOIDs.Description, nil
	case MetricLastDowntime:
		return huaweiOntOIDs.LastDownTime, nil
	case MetricLastDownCause:
		return huaweiOntOIDs.LastDownCause, nil
	case MetricSerial:
		return huaweiOntOIDs.SerialNumber, nil
	case MetricBoardTemperature:
		return huaweiDeviceOIDs.BoardTemperature, nil
	case MetricUptime:
		return huaweiDeviceOIDs.SysUpTime, nil
	case MetricPower:
		switch side {
		case PowerONU:
			return huaweiOpticalOIDs.RxPower, nil
		case PowerOLT:
			return huaweiOpticalOIDs.OltRxPower, nil
		default:
			return "", NewConfigurationError("power side", string(side), `must be "onu" or "olt"`)
		}
	default:
		return "", NewConfigurationError("metric", string(metric), "unknown metric")
	}
}

// portScoped reports whether a metric accepts a PON suffix.
func portScoped(metric Metric) bool {
	return metric != MetricBoardTemperature && metric != MetricUptime
}

// scopedWalk resolves the metric root, appends pon and walks it.
func (c *Client) scopedWalk(ctx context.Context, metric Metric, side PowerSide, pon string) ([]string, error) {
	root, err := RootOID(metric, side)
	if err != nil {
		return nil, err
	}
	oid, err := ScopedOID(root, pon)
	if err != nil {
		return nil, err
	}
	return c.walkValues(ctx, oid)
}

// Status returns the run state of every ONU under pon (or the whole OLT when
// pon is empty). Unknown state codes are omitted.
func (c *Client) Status(ctx context.Context, pon string) ([]ONUStatus, error) {
	raw, err := c.scopedWalk(ctx, MetricStatus, "", pon)
	if err != nil {
		return nil, err
	}
	return DecodeStatus(raw), nil
}

// Description returns the configured description of every ONU.
func (c *Client) Description(ctx context.Context, pon string) ([]string, error) {
	raw, err := c.scopedWalk(ctx, MetricDescription, "", pon)
	if err != nil {
		return nil, err
	}
	return DecodeDescription(raw), nil
}

// LastDowntime returns the last outage time of every ONU as DD-MM-YYYY HH:MM:SS.
func (c *Client) LastDowntime(ctx context.Context, pon string) ([]string, error) {
	raw, err := c.scopedWalk(ctx, MetricLastDowntime, "", pon)
	if err != nil {
		return nil, err
	}
	return DecodeLastDowntime(raw)
}

// LastDownCause returns the last outage cause of every ONU.
func (c *Client) LastDownCause(ctx context.Context, pon string) ([]DownCause, error) {
	raw, err := c.scopedWalk(ctx, MetricLastDownCause, "", pon)
	if err != nil {
		return nil, err
	}
	return DecodeLastDownCause(raw), nil
}

// Power returns the optical reading of every ONU on the selected side.
func (c *Client) Power(ctx context.Context, pon string, side PowerSide) ([]string, error) {
	raw, err := c.scopedWalk(ctx, MetricPower, side, pon)
	if err != nil {
		return nil, err
	}
	return DecodePower(raw)
}

// Serial returns the upper-cased serial number of every ONU.
func (c *Client) Serial(ctx context.Context, pon string) ([]string, error) {
	raw, err := c.scopedWalk(ctx, MetricSerial, "", pon)
	if err != nil {
		return nil, err
	}
	return DecodeSerial(raw)
}

// BoardTemperature returns the temperature of every board in the chassis.
func (c *Client) BoardTemperature(ctx context.Context) ([]string, error) {
	raw, err := c.walkValues(ctx, huaweiDeviceOIDs.BoardTemperature)
	if err != nil {
		return nil, err
	}
	return DecodeBoardTemperature(raw)
}

// Uptime returns the OLT uptime.
func (c *Client) Uptime(ctx context.Context) (Uptime, error) {
	raw, err := c.walkValues(ctx, huaweiDeviceOIDs.SysUpTime)
	if err != nil {
		return Uptime{}, err
	}
	return DecodeUptime(raw, c.config.LegacyUptime)
}

// Fetch dispatches a Request to the matching operation.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if !portScoped(req.Metric) && req.PON != "" {
		return nil, NewConfigurationError("pon", req.PON, fmt.Sprintf("%s is not port scoped", req.Metric))
	}

	res := &Result{
		Device: c.config.ID(),
		Metric: req.Metric,
		PON:    req.PON,
	}

	var err error
	switch req.Metric {
	case MetricStatus:
		var s []ONUStatus
		if s, err = c.Status(ctx, req.PON); err == nil {
			res.Values = make([]string, len(s))
			for i, v := range s {
				res.Values[i] = string(v)
			}
		}
	case MetricDescription:
		res.Values, err = c.Description(ctx, req.PON)
	case MetricLastDowntime:
		res.Values, err = c.LastDowntime(ctx, req.PON)
	case MetricLastDownCause:
		var causes []DownCause
		if causes, err = c.LastDownCause(ctx, req.PON); err == nil {
			res.Values = make([]string, len(causes))
			for i, v := range causes {
				res.Values[i] = string(v)
			}
		}
	case MetricPower:
		side := req.Side
		if side == "" {
			side = PowerONU
		}
		res.Values, err = c.Power(ctx, req.PON, side)
	case MetricSerial:
		res.Values, err = c.Serial(ctx, req.PON)
	case MetricBoardTemperature:
		res.Values, err = c.BoardTemperature(ctx)
	case MetricUptime:
		var u Uptime
		if u, err = c.Uptime(ctx); err == nil {
			res.Uptime = &u
		}
	default:
		return nil, NewConfigurationError("metric", string(req.Metric), "unknown metric")
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
