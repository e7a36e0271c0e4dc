// io-perf-dump talks to the running io-perf-daemon over D-Bus: with no
// flags it prints the retained collection histories, with -start it
// begins a custom collection, and with -end it ends one and prints its
// report.
package main

import (
	"flag"
	"fmt"
	"os"

	godbus "github.com/godbus/dbus/v5"
)

const (
	dbusName  = "org.ioperf.Monitor"
	dbusPath  = "/org/ioperf/Monitor"
	dbusIface = "org.ioperf.Monitor"
)

type dbusClient struct {
	conn *godbus.Conn
	obj  godbus.BusObject
}

func newDBusClient() (*dbusClient, error) {
	conn, err := godbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	obj := conn.Object(dbusName, dbusPath)
	return &dbusClient{conn: conn, obj: obj}, nil
}

func (c *dbusClient) Dump(args []string) (string, error) {
	var report string
	if err := c.obj.Call(dbusIface+".Dump", 0, args).Store(&report); err != nil {
		return "", err
	}
	return report, nil
}

func (c *dbusClient) MarkBootFinished() error {
	return c.obj.Call(dbusIface+".MarkBootFinished", 0).Err
}

func (c *dbusClient) Regime() (string, error) {
	var regime string
	if err := c.obj.Call(dbusIface+".Regime", 0).Store(&regime); err != nil {
		return "", err
	}
	return regime, nil
}

func main() {
	start := flag.Bool("start", false, "start a custom collection")
	end := flag.Bool("end", false, "end the custom collection and print its report")
	interval := flag.Duration("interval", 0, "custom collection sampling interval (implies -start)")
	maxDuration := flag.Duration("max-duration", 0, "custom collection time limit (implies -start)")
	bootFinished := flag.Bool("boot-finished", false, "signal boot completion to the daemon")
	regime := flag.Bool("regime", false, "print the current collection regime")
	flag.Parse()

	client, err := newDBusClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "io-perf-dump:", err)
		os.Exit(1)
	}
	defer client.conn.Close()

	switch {
	case *bootFinished:
		err = client.MarkBootFinished()
	case *regime:
		var r string
		if r, err = client.Regime(); err == nil {
			fmt.Println(r)
		}
	default:
		var args []string
		if *end {
			args = append(args, "--end")
		}
		if *start {
			args = append(args, "--start")
		}
		if *interval > 0 {
			args = append(args, "--interval", interval.String())
		}
		if *maxDuration > 0 {
			args = append(args, "--max-duration", maxDuration.String())
		}
		var report string
		if report, err = client.Dump(args); err == nil {
			fmt.Print(report)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "io-perf-dump:", err)
		os.Exit(1)
	}
}
