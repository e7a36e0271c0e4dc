package dbus

import (
	"bytes"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/vmartel/io-perf-monitor/internal/perf"
)

const (
	busName   = "org.ioperf.Monitor"
	objPath   = "/org/ioperf/Monitor"
	ifaceName = "org.ioperf.Monitor"
)

const introspectXML = `
<node>
  <interface name="` + ifaceName + `">
    <method name="Dump">
      <arg direction="in" type="as" name="args"/>
      <arg direction="out" type="s" name="report"/>
    </method>
    <method name="MarkBootFinished">
    </method>
    <method name="Regime">
      <arg direction="out" type="s" name="regime"/>
    </method>
  </interface>
` + introspect.IntrospectDataString + `
</node>`

// Service exposes the I/O performance collector over D-Bus.
type Service struct {
	coll *perf.Collector
}

// NewService creates a new D-Bus service.
func NewService(coll *perf.Collector) *Service {
	return &Service{coll: coll}
}

// Export registers the service on the system bus.
func (s *Service) Export() (*godbus.Conn, error) {
	conn, err := godbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	conn.Export(s, objPath, ifaceName)
	conn.Export(introspect.Introspectable(introspectXML), objPath, "org.freedesktop.DBus.Introspectable")

	reply, err := conn.RequestName(busName, godbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", busName)
	}

	return conn, nil
}

// Dump serves the polymorphic dump surface: no args renders the retained
// histories, start args begin a custom collection, --end ends one and
// returns its report.
func (s *Service) Dump(args []string) (string, *godbus.Error) {
	var buf bytes.Buffer
	if err := s.coll.Dump(&buf, args); err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return buf.String(), nil
}

// MarkBootFinished signals boot completion, switching the collector from
// boot-time to periodic collection.
func (s *Service) MarkBootFinished() *godbus.Error {
	if err := s.coll.OnBootFinished(); err != nil {
		return godbus.MakeFailedError(err)
	}
	return nil
}

// Regime returns the name of the current collection regime.
func (s *Service) Regime() (string, *godbus.Error) {
	return s.coll.Regime().String(), nil
}
