package snmp

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/gosnmp/gosnmp"
	snmpmock "github.com/gosnmp/gosnmp/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent answers GETNEXT from an in-memory MIB.
type fakeAgent struct {
	pdus []gosnmp.SnmpPDU
	fail map[string]error // root prefix -> transport error
}

func newFakeAgent(pdus ...gosnmp.SnmpPDU) *fakeAgent {
	sort.Slice(pdus, func(i, j int) bool { return CompareOID(pdus[i].Name, pdus[j].Name) < 0 })
	return &fakeAgent{pdus: pdus, fail: map[string]error{}}
}

func (a *fakeAgent) getNext(oids []string) (*gosnmp.SnmpPacket, error) {
	for prefix, err := range a.fail {
		if oids[0] == prefix || InSubtree(oids[0], prefix) {
			return nil, err
		}
	}
	for _, pdu := range a.pdus {
		if CompareOID(pdu.Name, oids[0]) > 0 {
			return packet(pdu), nil
		}
	}
	return packet(gosnmp.SnmpPDU{Name: oids[0], Type: gosnmp.EndOfMibView}), nil
}

func octetPDU(oid string, b []byte) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.OctetString, Value: b}
}

func newMockClient(t *testing.T, agent *fakeAgent, config DeviceConfig) *Client {
	ctrl := gomock.NewController(t)
	m := snmpmock.NewMockHandler(ctrl)

	m.EXPECT().SetTarget(config.Host).AnyTimes()
	m.EXPECT().SetPort(gomock.Any()).AnyTimes()
	m.EXPECT().SetCommunity(gomock.Any()).AnyTimes()
	m.EXPECT().SetVersion(gomock.Any()).AnyTimes()
	m.EXPECT().SetTimeout(gomock.Any()).AnyTimes()
	m.EXPECT().SetRetries(gomock.Any()).AnyTimes()
	m.EXPECT().SetMaxRepetitions(gomock.Any()).AnyTimes()
	m.EXPECT().Connect().Return(nil).AnyTimes()
	m.EXPECT().Close().Return(nil).AnyTimes()
	m.EXPECT().Version().Return(gosnmp.Version2c).AnyTimes()
	m.EXPECT().GetNext(gomock.Any()).DoAndReturn(agent.getNext).AnyTimes()

	return NewClient(config, WithHandlerFactory(func() gosnmp.Handler { return m }))
}

const (
	ifIndex0 = "4194312192"
	ifIndex1 = "4194312448"
)

func huaweiFixture() *fakeAgent {
	return newFakeAgent(
		intPDU(huaweiOntOIDs.RunStatus+"."+ifIndex0+".0", 1),
		intPDU(huaweiOntOIDs.RunStatus+"."+ifIndex0+".1", 2),
		intPDU(huaweiOntOIDs.RunStatus+"."+ifIndex1+".0", 1),

		octetPDU(huaweiOntOIDs.Description+"."+ifIndex0+".0", []byte("cliente-a")),
		octetPDU(huaweiOntOIDs.Description+"."+ifIndex0+".1", []byte("cliente-b")),
		octetPDU(huaweiOntOIDs.Description+"."+ifIndex1+".0", []byte("cliente-c")),

		octetPDU(huaweiOntOIDs.SerialNumber+"."+ifIndex0+".0", []byte{0x48, 0x57, 0x54, 0x43, 0x00, 0x11, 0xd1, 0x68}),
		octetPDU(huaweiOntOIDs.SerialNumber+"."+ifIndex0+".1", []byte{0x48, 0x57, 0x54, 0x43, 0xb6, 0x9e, 0x44, 0x9c}),
		octetPDU(huaweiOntOIDs.SerialNumber+"."+ifIndex1+".0", []byte{0x48, 0x57, 0x54, 0x43, 0x84, 0xbd, 0x00, 0x9a}),

		octetPDU(huaweiOntOIDs.LastDownTime+"."+ifIndex0+".0", []byte{0x07, 0xe4, 0x06, 0x07, 0x15, 0x0a, 0x22, 0x00, 0x2d, 0x03, 0x00}),
		octetPDU(huaweiOntOIDs.LastDownTime+"."+ifIndex0+".1", []byte{0x07, 0xe5, 0x01, 0x02, 0x03, 0x04, 0x05, 0x00, 0x2d, 0x03, 0x00}),
		octetPDU(huaweiOntOIDs.LastDownTime+"."+ifIndex1+".0", []byte{0x07, 0xe5, 0x01, 0x02, 0x03, 0x04, 0x05, 0x00}),

		intPDU(huaweiOntOIDs.LastDownCause+"."+ifIndex0+".0", 2),
		intPDU(huaweiOntOIDs.LastDownCause+"."+ifIndex0+".1", 13),
		intPDU(huaweiOntOIDs.LastDownCause+"."+ifIndex1+".0", -1),

		intPDU(huaweiOpticalOIDs.RxPower+"."+ifIndex0+".0", -2150),
		intPDU(huaweiOpticalOIDs.RxPower+"."+ifIndex0+".1", NoDataSentinel),
		intPDU(huaweiOpticalOIDs.RxPower+"."+ifIndex1+".0", -1905),

		intPDU(huaweiOpticalOIDs.OltRxPower+"."+ifIndex0+".0", -2310),
		intPDU(huaweiOpticalOIDs.OltRxPower+"."+ifIndex0+".1", NoDataSentinel),
		intPDU(huaweiOpticalOIDs.OltRxPower+"."+ifIndex1+".0", -2001),

		intPDU(huaweiDeviceOIDs.BoardTemperature+".0", 41),
		intPDU(huaweiDeviceOIDs.BoardTemperature+".1", NoDataSentinel),
		intPDU(huaweiDeviceOIDs.BoardTemperature+".10", 38),

		gosnmp.SnmpPDU{Name: huaweiDeviceOIDs.SysUpTime + ".0", Type: gosnmp.TimeTicks, Value: uint32(18384500)},
	)
}

func TestClient_Operations(t *testing.T) {
	ctx := context.Background()
	c := newMockClient(t, huaweiFixture(), DeviceConfig{Host: "10.0.0.1", Community: "public"})

	status, err := c.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []ONUStatus{StatusOnline, StatusOffline, StatusOnline}, status)

	status, err = c.Status(ctx, ifIndex0)
	require.NoError(t, err)
	assert.Equal(t, []ONUStatus{StatusOnline, StatusOffline}, status)

	desc, err := c.Description(ctx, ifIndex1)
	require.NoError(t, err)
	assert.Equal(t, []string{"cliente-c"}, desc)

	down, err := c.LastDowntime(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"07-06-2020 21:10:34", "02-01-2021 03:04:05", "02-01-2021 03:04:05"}, down)

	causes, err := c.LastDownCause(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []DownCause{CauseLOS, CauseDyingGasp, CauseNoInfo}, causes)

	rx, err := c.Power(ctx, "", PowerONU)
	require.NoError(t, err)
	assert.Equal(t, []string{"-21.50", "offline", "-19.05"}, rx)

	olt, err := c.Power(ctx, ifIndex0, PowerOLT)
	require.NoError(t, err)
	assert.Equal(t, []string{"-23.10", "offline"}, olt)

	serials, err := c.Serial(ctx, ifIndex1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4857544384BD009A"}, serials)
	assert.Equal(t, "HWTC84BD009A", SerialVendorID(serials[0]))

	temps, err := c.BoardTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"41", NoData, "38"}, temps)

	up, err := c.Uptime(ctx)
	require.NoError(t, err)
	assert.Equal(t, Uptime{Days: 2, Hours: 3, Minutes: 4}, up)
}

func TestClient_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	c := newMockClient(t, huaweiFixture(), DeviceConfig{Host: "10.0.0.1"})

	_, err := c.Power(ctx, "", PowerSide("both"))
	assert.True(t, IsConfigurationError(err))

	_, err = c.Status(ctx, "0/1/2")
	assert.True(t, IsConfigurationError(err))

	_, err = c.Fetch(ctx, Request{Metric: MetricUptime, PON: ifIndex0})
	assert.True(t, IsConfigurationError(err))

	_, err = c.Fetch(ctx, Request{Metric: Metric("cpu")})
	assert.True(t, IsConfigurationError(err))

	noHost := NewClient(DeviceConfig{})
	_, err = noHost.Status(ctx, "")
	assert.True(t, IsConfigurationError(err))

	badVersion := NewClient(DeviceConfig{Host: "10.0.0.1", Version: "3"})
	assert.True(t, IsConfigurationError(badVersion.Validate()))
}

func TestClient_Fetch(t *testing.T) {
	ctx := context.Background()
	c := newMockClient(t, huaweiFixture(), DeviceConfig{Name: "olt-centro", Host: "10.0.0.1"})

	res, err := c.Fetch(ctx, Request{Metric: MetricStatus, PON: ifIndex0})
	require.NoError(t, err)
	assert.Equal(t, "olt-centro", res.Device)
	assert.Equal(t, []string{"online", "offline"}, res.Values)

	res, err = c.Fetch(ctx, Request{Metric: MetricPower})
	require.NoError(t, err)
	assert.Equal(t, []string{"-21.50", "offline", "-19.05"}, res.Values)

	res, err = c.Fetch(ctx, Request{Metric: MetricUptime})
	require.NoError(t, err)
	require.NotNil(t, res.Uptime)
	assert.Equal(t, 2, res.Uptime.Days)
	assert.Nil(t, res.Values)
}

func TestClient_CommunicationErrors(t *testing.T) {
	ctx := context.Background()

	agent := huaweiFixture()
	agent.fail[huaweiOntOIDs.RunStatus] = errors.New("request timeout (after 2 retries)")
	c := newMockClient(t, agent, DeviceConfig{Host: "10.0.0.1"})

	status, err := c.Status(ctx, "")
	assert.Nil(t, status)
	assert.True(t, IsCommunicationError(err))

	ctrl := gomock.NewController(t)
	m := snmpmock.NewMockHandler(ctrl)
	m.EXPECT().SetTarget(gomock.Any()).AnyTimes()
	m.EXPECT().SetPort(gomock.Any()).AnyTimes()
	m.EXPECT().SetCommunity(gomock.Any()).AnyTimes()
	m.EXPECT().SetVersion(gomock.Any()).AnyTimes()
	m.EXPECT().SetTimeout(gomock.Any()).AnyTimes()
	m.EXPECT().SetRetries(gomock.Any()).AnyTimes()
	m.EXPECT().SetMaxRepetitions(gomock.Any()).AnyTimes()
	m.EXPECT().Connect().Return(errors.New("no route to host"))

	unreachable := NewClient(DeviceConfig{Host: "10.0.0.2"}, WithHandlerFactory(func() gosnmp.Handler { return m }))
	_, err = unreachable.Uptime(ctx)
	assert.True(t, IsCommunicationError(err))
}

func TestClient_DecodeErrorFailsWholeCall(t *testing.T) {
	agent := newFakeAgent(
		intPDU(huaweiOpticalOIDs.RxPower+"."+ifIndex0+".0", -2150),
		octetPDU(huaweiOpticalOIDs.RxPower+"."+ifIndex0+".1", []byte("n/a")),
	)
	c := newMockClient(t, agent, DeviceConfig{Host: "10.0.0.1"})

	rx, err := c.Power(context.Background(), "", PowerONU)
	assert.Nil(t, rx)
	assert.True(t, IsDecodeError(err))
}

func TestClient_LegacyUptime(t *testing.T) {
	agent := newFakeAgent(gosnmp.SnmpPDU{Name: huaweiDeviceOIDs.SysUpTime + ".0", Type: gosnmp.TimeTicks, Value: uint32(366000)})

	corrected := newMockClient(t, agent, DeviceConfig{Host: "10.0.0.1"})
	up, err := corrected.Uptime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Uptime{Days: 0, Hours: 1, Minutes: 1}, up)

	legacy := newMockClient(t, agent, DeviceConfig{Host: "10.0.0.1", LegacyUptime: true})
	_, err = legacy.Uptime(context.Background())
	assert.True(t, IsDecodeError(err))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(DeviceConfig{Host: "10.0.0.1"})
	cfg := c.Config()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, SNMPv2c, cfg.Version)
	assert.Equal(t, "10.0.0.1", cfg.ID())

	assert.True(t, IsConfigurationError(NewClient(DeviceConfig{Host: "10.0.0.1", Retries: -1}).Validate()))
}

func TestClient_ZeroRetriesReachesHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := snmpmock.NewMockHandler(ctrl)
	m.EXPECT().SetTarget("10.0.0.1")
	m.EXPECT().SetPort(DefaultPort)
	m.EXPECT().SetCommunity(gomock.Any())
	m.EXPECT().SetVersion(gosnmp.Version2c)
	m.EXPECT().SetTimeout(DefaultTimeout)
	m.EXPECT().SetRetries(0)
	m.EXPECT().SetMaxRepetitions(gomock.Any())
	m.EXPECT().Connect().Return(errors.New("no route to host"))

	c := NewClient(DeviceConfig{Host: "10.0.0.1", Retries: 0}, WithHandlerFactory(func() gosnmp.Handler { return m }))
	_, err := c.Uptime(context.Background())
	assert.True(t, IsCommunicationError(err))
}
