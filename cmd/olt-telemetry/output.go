package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

var (
	onlineColor  = color.New(color.FgHiGreen)
	offlineColor = color.New(color.FgHiRed)
	warnColor    = color.New(color.FgHiYellow)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints one value per line, in walk order.
func writeResult(w io.Writer, res *snmp.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}

	if res.Uptime != nil {
		_, err := fmt.Fprintln(w, formatUptime(*res.Uptime))
		return err
	}

	for _, v := range res.Values {
		if res.Metric == snmp.MetricStatus {
			v = colorValue(v)
		}
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeSnapshot(w io.Writer, snap *snmp.Snapshot, asJSON bool) error {
	if asJSON {
		return writeJSON(w, snap)
	}

	online, offline := snap.CountStatus()
	fmt.Fprintf(w, "OLT: %s (%s)\n", snap.Device, snap.Host)
	if snap.Uptime != nil {
		fmt.Fprintf(w, "Uptime: %s\n", formatUptime(*snap.Uptime))
	}
	fmt.Fprintf(w, "ONUs: %d (%s online, %s offline)\n\n",
		len(snap.ONUs),
		onlineColor.Sprint(online),
		offlineColor.Sprint(offline))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Port\tStatus\tSerial\tDescription\tRx Power\tOLT Rx\tLast Down\tCause")
	fmt.Fprintln(tw, "----\t------\t------\t-----------\t--------\t------\t---------\t-----")
	for _, onu := range snap.SortedONUs() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			snmp.PortName(onu.Index),
			dash(colorValue(string(onu.Status))),
			dash(snmp.SerialVendorID(onu.Serial)),
			dash(onu.Description),
			dash(onu.RxPower),
			dash(onu.OltPower),
			dash(onu.LastDowntime),
			dash(string(onu.LastDownCause)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(snap.Boards) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Board\tTemperature")
		fmt.Fprintln(tw, "-----\t-----------")
		for _, b := range snap.Boards {
			fmt.Fprintf(tw, "%s\t%s\n", b.Index, b.Value)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(snap.Errors) > 0 {
		fmt.Fprintln(w)
		for _, e := range snap.Errors {
			fmt.Fprintln(w, warnColor.Sprint("warning: "+e))
		}
	}
	return nil
}

func formatUptime(u snmp.Uptime) string {
	return fmt.Sprintf("%d days, %d hours, %d minutes", u.Days, u.Hours, u.Minutes)
}

func colorValue(v string) string {
	switch snmp.ONUStatus(v) {
	case snmp.StatusOnline:
		return onlineColor.Sprint(v)
	case snmp.StatusOffline:
		return offlineColor.Sprint(v)
	}
	return v
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
