package snmp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// DefaultSnapshotConcurrency bounds the walks a snapshot runs in parallel.
const DefaultSnapshotConcurrency = 4

// snapshotWalk is one subtree walk feeding a snapshot.
type snapshotWalk struct {
	metric Metric
	side   PowerSide
	root   string // unscoped metric root, used to derive ONU indices
	oid    string // root plus optional PON suffix
}

type walkResult struct {
	walk     snapshotWalk
	bindings []Binding
	err      error
}

// snapshotPlan lists every walk needed for pons. An empty pons walks the whole OLT.
func snapshotPlan(pons []string) ([]snapshotWalk, error) {
	scopes := pons
	if len(scopes) == 0 {
		scopes = []string{""}
	}

	type metricSide struct {
		metric Metric
		side   PowerSide
	}
	perONU := []metricSide{
		{MetricStatus, ""},
		{MetricDescription, ""},
		{MetricSerial, ""},
		{MetricLastDowntime, ""},
		{MetricLastDownCause, ""},
		{MetricPower, PowerONU},
		{MetricPower, PowerOLT},
	}

	var plan []snapshotWalk
	for _, pon := range scopes {
		for _, ms := range perONU {
			root, err := RootOID(ms.metric, ms.side)
			if err != nil {
				return nil, err
			}
			oid, err := ScopedOID(root, pon)
			if err != nil {
				return nil, err
			}
			plan = append(plan, snapshotWalk{metric: ms.metric, side: ms.side, root: root, oid: oid})
		}
	}
	plan = append(plan,
		snapshotWalk{metric: MetricBoardTemperature, root: huaweiDeviceOIDs.BoardTemperature, oid: huaweiDeviceOIDs.BoardTemperature},
		snapshotWalk{metric: MetricUptime, root: huaweiDeviceOIDs.SysUpTime, oid: huaweiDeviceOIDs.SysUpTime},
	)
	return plan, nil
}

// Snapshot walks every metric of the device and joins per-ONU values by index.
// Failed walks and malformed values are recorded in Snapshot.Errors; an error
// is returned only when no walk succeeded.
func (c *Client) Snapshot(ctx context.Context, pons []string) (*Snapshot, error) {
	if pons == nil {
		pons = c.config.PONs
	}
	plan, err := snapshotPlan(pons)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	workers := c.concurrency
	if workers <= 0 {
		workers = DefaultSnapshotConcurrency
	}

	p := pool.New().WithMaxGoroutines(workers)
	resultsChan := make(chan walkResult, len(plan))
	for _, w := range plan {
		w := w
		p.Go(func() {
			bindings, err := c.walk(ctx, w.oid)
			resultsChan <- walkResult{walk: w, bindings: bindings, err: err}
		})
	}
	p.Wait()
	close(resultsChan)

	snap := &Snapshot{
		Device:      c.config.ID(),
		Host:        c.config.Host,
		ONUs:        make(map[string]*ONUTelemetry),
		CollectedAt: start,
	}

	var (
		firstErr  error
		succeeded int
	)
	for res := range resultsChan {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", res.walk.oid, res.err))
			continue
		}
		succeeded++
		snap.apply(res.walk, res.bindings, c.config.LegacyUptime)
	}

	sort.Slice(snap.Boards, func(i, j int) bool {
		return CompareOID(snap.Boards[i].Index, snap.Boards[j].Index) < 0
	})
	sort.Strings(snap.Errors)
	snap.Duration = time.Since(start)

	if succeeded == 0 && firstErr != nil {
		return nil, firstErr
	}

	c.logger.Debug().
		Int("onus", len(snap.ONUs)).
		Int("errors", len(snap.Errors)).
		Dur("took", snap.Duration).
		Msg("snapshot collected")

	return snap, nil
}

// apply decodes the bindings of one walk into the snapshot.
func (s *Snapshot) apply(w snapshotWalk, bindings []Binding, legacyUptime bool) {
	if w.metric == MetricUptime {
		values := make([]string, len(bindings))
		for i, b := range bindings {
			values[i] = b.Value
		}
		u, err := DecodeUptime(values, legacyUptime)
		if err != nil {
			s.Errors = append(s.Errors, err.Error())
			return
		}
		s.Uptime = &u
		return
	}

	for i, b := range bindings {
		index := IndexSuffix(b.OID, w.root)
		if w.metric == MetricBoardTemperature {
			v, err := decodeBoardTemperatureValue(b.Value)
			if err != nil {
				s.Errors = append(s.Errors, NewDecodeError(w.metric, i, b.Value, err.Error()).Error())
				continue
			}
			s.Boards = append(s.Boards, BoardTemperature{Index: index, Value: v})
			continue
		}

		onu := s.onu(index)
		switch w.metric {
		case MetricStatus:
			if st, ok := decodeStatusValue(b.Value); ok {
				onu.Status = st
			}
		case MetricDescription:
			onu.Description = b.Value
		case MetricSerial:
			serial, err := decodeSerialValue(b.Value)
			if err != nil {
				s.Errors = append(s.Errors, NewDecodeError(w.metric, i, b.Value, err.Error()).Error())
				continue
			}
			onu.Serial = serial
		case MetricLastDowntime:
			d, err := ParseDateAndTime(b.Value)
			if err != nil {
				s.Errors = append(s.Errors, NewDecodeError(w.metric, i, b.Value, err.Error()).Error())
				continue
			}
			onu.LastDowntime = d.String()
			onu.LastDownAt = d.Time(time.UTC)
		case MetricLastDownCause:
			onu.LastDownCause = decodeDownCauseValue(b.Value)
		case MetricPower:
			p, err := decodePowerValue(b.Value)
			if err != nil {
				s.Errors = append(s.Errors, NewDecodeError(w.metric, i, b.Value, err.Error()).Error())
				continue
			}
			if w.side == PowerOLT {
				onu.OltPower = p
			} else {
				onu.RxPower = p
			}
		}
	}
}

func (s *Snapshot) onu(index string) *ONUTelemetry {
	onu, ok := s.ONUs[index]
	if !ok {
		onu = &ONUTelemetry{Index: index}
		s.ONUs[index] = onu
	}
	return onu
}

// SortedONUs returns the ONUs ordered by index.
func (s *Snapshot) SortedONUs() []*ONUTelemetry {
	out := make([]*ONUTelemetry, 0, len(s.ONUs))
	for _, onu := range s.ONUs {
		out = append(out, onu)
	}
	sort.Slice(out, func(i, j int) bool {
		return CompareOID(out[i].Index, out[j].Index) < 0
	})
	return out
}

// CountStatus returns how many ONUs are online and offline.
func (s *Snapshot) CountStatus() (online, offline int) {
	for _, onu := range s.ONUs {
		switch onu.Status {
		case StatusOnline:
			online++
		case StatusOffline:
			offline++
		}
	}
	return online, offline
}
