package dispatch

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/hap/securesession"
	"github.com/hapcore/hapd/internal/hap/session"
)

func pipeSession(t *testing.T, secured, transient, admin bool) *session.Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })

	sess := session.New(1, server, securesession.NoopAdapter{})
	if secured {
		sess.Security.Promote(securesession.KindHAP, transient, admin)
	}
	return sess
}

func boolCharacteristicDB(current *bool) *characteristic.Database {
	return &characteristic.Database{
		Accessories: []*characteristic.Accessory{
			{
				AID: 1,
				Services: []*characteristic.Service{
					{
						IID:      1,
						TypeUUID: "0000003E-0000-1000-8000-0026BB765291",
						Characteristics: []*characteristic.Characteristic{
							{
								IID:      9,
								TypeUUID: "00000025-0000-1000-8000-0026BB765291",
								Format:   characteristic.FormatBool,
								Properties: characteristic.Properties{
									Readable: true,
									Writable: true,
								},
								OnRead: func(ctx context.Context, s characteristic.SessionContext) (any, error) {
									return *current, nil
								},
								OnWrite: func(ctx context.Context, s characteristic.SessionContext, v any) error {
									switch val := v.(type) {
									case bool:
										*current = val
									case float64:
										*current = val != 0
									}
									return nil
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestUnmatchedPathUnsecuredReturns470(t *testing.T) {
	sess := pipeSession(t, false, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "GET", "/nonexistent", nil)
	require.Equal(t, RespUnauthorized, res.Response)
}

func TestUnmatchedPathSecuredReturns404(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "GET", "/nonexistent", nil)
	require.Equal(t, RespNotFound, res.Response)
}

func TestBadMethodOnMatchedPathReturns405(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "DELETE", "/accessories", nil)
	require.Equal(t, RespMethodNotAllowed, res.Response)
}

func TestAccessoriesRequiresSecurity(t *testing.T) {
	sess := pipeSession(t, false, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "GET", "/accessories", nil)
	require.Equal(t, RespUnauthorized, res.Response)
}

func TestAccessoriesRejectsTransientSession(t *testing.T) {
	sess := pipeSession(t, true, true, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "GET", "/accessories", nil)
	require.Equal(t, RespUnauthorized, res.Response)
}

func TestAccessoriesReturnsStream(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := true
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	res := d.Handle(context.Background(), sess, "GET", "/accessories", nil)
	require.Nil(t, res.Response)
	require.NotNil(t, res.Stream)
}

func TestCharacteristicsGetReadsValue(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := true
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	res := d.Handle(context.Background(), sess, "GET", "/characteristics?id=1.9", nil)
	require.Contains(t, string(res.Response), "HTTP/1.1 200 OK")
	require.Contains(t, string(res.Response), `"aid":1`)
	require.NotContains(t, string(res.Response), `"status"`)
}

func TestCharacteristicsGetUnknownIDReportsStatusOnAll(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := true
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	res := d.Handle(context.Background(), sess, "GET", "/characteristics?id=1.9,9.9", nil)
	require.Contains(t, string(res.Response), "207 Multi-Status")

	bodyStart := bytesIndexCRLFCRLF(res.Response)
	var parsed multiStatusBody
	require.NoError(t, json.Unmarshal(res.Response[bodyStart:], &parsed))
	require.Len(t, parsed.Characteristics, 2)
	for _, c := range parsed.Characteristics {
		require.NotNil(t, c.Status)
	}
}

func TestCharacteristicsPutWritesValue(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}

	body := []byte(`{"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	res := d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Equal(t, RespNoContent, res.Response)
	require.True(t, value)
}

type fakeEventRaiser struct {
	aid, iid         uint64
	excludeSessionID uint64
	calls            int
}

func (f *fakeEventRaiser) Raise(aid, iid uint64, immediate bool, excludeSessionID uint64) {
	f.aid, f.iid, f.excludeSessionID = aid, iid, excludeSessionID
	f.calls++
}

func TestCharacteristicsPutRaisesEventExcludingWritingSession(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	raiser := &fakeEventRaiser{}
	d.Events = raiser

	body := []byte(`{"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	res := d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Equal(t, RespNoContent, res.Response)
	require.Equal(t, 1, raiser.calls)
	require.EqualValues(t, 1, raiser.aid)
	require.EqualValues(t, 9, raiser.iid)
	require.Equal(t, sess.ID, raiser.excludeSessionID)
}

func TestCharacteristicsPutDoesNotRaiseEventOnFailedWrite(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	db := boolCharacteristicDB(&value)
	db.Accessories[0].Services[0].Characteristics[0].Properties.RequiresTimedWrite = true
	d := &Dispatcher{DB: db}
	raiser := &fakeEventRaiser{}
	d.Events = raiser

	body := []byte(`{"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Zero(t, raiser.calls)
}

func TestCharacteristicsPutWithoutPrepareOnTimedWriteCharacteristic(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	db := boolCharacteristicDB(&value)
	db.Accessories[0].Services[0].Characteristics[0].Properties.RequiresTimedWrite = true
	d := &Dispatcher{DB: db}

	body := []byte(`{"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	res := d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Contains(t, string(res.Response), "207 Multi-Status")
	require.False(t, value)
}

type fakeIdentifyHandler struct {
	calls int
}

func (f *fakeIdentifyHandler) HandleIdentify(ctx context.Context) error {
	f.calls++
	return nil
}

type fakePairingState struct {
	paired bool
	err    error
}

func (f fakePairingState) IsPaired(ctx context.Context) (bool, error) {
	return f.paired, f.err
}

func TestIdentifySucceedsWhenUnpaired(t *testing.T) {
	sess := pipeSession(t, false, false, false)
	identify := &fakeIdentifyHandler{}
	d := &Dispatcher{DB: &characteristic.Database{}, Identify: identify, Pairing: fakePairingState{paired: false}}

	res := d.Handle(context.Background(), sess, "POST", "/identify", nil)
	require.Equal(t, RespNoContent, res.Response)
	require.Equal(t, 1, identify.calls)
}

func TestIdentifyRefusedWhenAlreadyPaired(t *testing.T) {
	sess := pipeSession(t, false, false, false)
	identify := &fakeIdentifyHandler{}
	d := &Dispatcher{DB: &characteristic.Database{}, Identify: identify, Pairing: fakePairingState{paired: true}}

	res := d.Handle(context.Background(), sess, "POST", "/identify", nil)
	require.Equal(t, RespInsufficientPrivileges(), res.Response)
	require.Zero(t, identify.calls)
}

func TestCharacteristicsPutWithValidPIDCommits(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	sess.ArmTimedWrite(1000_000_000, 42)

	body := []byte(`{"pid":42,"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	res := d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Equal(t, RespNoContent, res.Response)
	require.True(t, value)
}

func TestCharacteristicsPutWithMismatchedPIDForcesInvalidData(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	value := false
	d := &Dispatcher{DB: boolCharacteristicDB(&value)}
	sess.ArmTimedWrite(1000_000_000, 42)

	body := []byte(`{"pid":99,"characteristics":[{"aid":1,"iid":9,"value":1}]}`)
	res := d.Handle(context.Background(), sess, "PUT", "/characteristics", body)
	require.Contains(t, string(res.Response), "207 Multi-Status")
	require.False(t, value)
}

func TestPrepareArmsTimedWrite(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}

	body := []byte(`{"ttl":5000,"pid":7}`)
	res := d.Handle(context.Background(), sess, "PUT", "/prepare", body)
	require.Contains(t, string(res.Response), "200 OK")
	require.True(t, sess.ConsumeTimedWrite(7))
}

func TestPairSetupUnconfiguredReturns500(t *testing.T) {
	sess := pipeSession(t, false, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "POST", "/pair-setup", nil)
	require.Equal(t, RespServerError, res.Response)
}

func TestPairSetupRejectedWhenAlreadySecured(t *testing.T) {
	sess := pipeSession(t, true, false, false)
	d := &Dispatcher{DB: &characteristic.Database{}}
	res := d.Handle(context.Background(), sess, "POST", "/pair-setup", nil)
	require.Equal(t, RespUnauthorized, res.Response)
}

func bytesIndexCRLFCRLF(b []byte) int {
	for i := 0; i+3 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' && b[i+2] == '\r' && b[i+3] == '\n' {
			return i + 4
		}
	}
	return 0
}
