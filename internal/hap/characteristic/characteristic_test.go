package characteristic

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	admin bool
}

func (f fakeSession) IsAdmin() bool { return f.admin }

func boolChar(current *bool) *Characteristic {
	return &Characteristic{
		IID:    9,
		Format: FormatBool,
		Properties: Properties{
			Readable: true,
			Writable: true,
		},
		OnRead: func(ctx context.Context, s SessionContext) (any, error) {
			return *current, nil
		},
		OnWrite: func(ctx context.Context, s SessionContext, value any) error {
			*current = value.(bool)
			return nil
		},
	}
}

func TestReadBoolFormatsAsNumeric(t *testing.T) {
	v := false
	c := boolChar(&v)
	value, status := c.Read(context.Background(), fakeSession{}, ReadContextNormal)
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, 0, value)
}

func TestWriteNonWritableRejected(t *testing.T) {
	c := &Characteristic{Properties: Properties{Readable: true}}
	result := c.Write(context.Background(), fakeSession{}, WriteRequest{Value: true})
	require.Equal(t, StatusNotWritable, result.Status)
}

func TestWriteUInt8OutOfRange(t *testing.T) {
	c := &Characteristic{
		Format:     FormatUInt8,
		Properties: Properties{Writable: true},
		Constraints: Constraints{Numeric: NumericConstraints{Minimum: 0, Maximum: 100, Step: 1}},
		OnWrite: func(ctx context.Context, s SessionContext, value any) error {
			return nil
		},
	}
	result := c.Write(context.Background(), fakeSession{}, WriteRequest{Value: float64(300)})
	require.Equal(t, StatusInvalidData, result.Status)
}

func TestWriteRequiresTimedWrite(t *testing.T) {
	c := &Characteristic{
		Format:     FormatBool,
		Properties: Properties{Writable: true, RequiresTimedWrite: true},
		OnWrite: func(ctx context.Context, s SessionContext, value any) error {
			return nil
		},
	}
	result := c.Write(context.Background(), fakeSession{}, WriteRequest{Value: true, IsTimedWrite: false})
	require.Equal(t, StatusInvalidData, result.Status)

	result = c.Write(context.Background(), fakeSession{}, WriteRequest{Value: true, IsTimedWrite: true})
	require.Equal(t, StatusSuccess, result.Status)
}

func TestWriteAdminRequired(t *testing.T) {
	c := &Characteristic{
		Format:     FormatBool,
		Properties: Properties{Writable: true, RequiresAdminWrite: true},
		OnWrite: func(ctx context.Context, s SessionContext, value any) error {
			return nil
		},
	}
	result := c.Write(context.Background(), fakeSession{admin: false}, WriteRequest{Value: true})
	require.Equal(t, StatusNotAuthorized, result.Status)

	result = c.Write(context.Background(), fakeSession{admin: true}, WriteRequest{Value: true})
	require.Equal(t, StatusSuccess, result.Status)
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, StatusSuccess},
		{ErrInvalidData, StatusInvalidData},
		{ErrOutOfResources, StatusOutOfResources},
		{ErrNotAuthorized, StatusNotAuthorized},
		{ErrBusy, StatusBusy},
		{ErrUnknown, StatusInvalidStateOrUnknown},
	}
	for _, tc := range cases {
		c := &Characteristic{
			Format:     FormatBool,
			Properties: Properties{Writable: true},
			OnWrite: func(ctx context.Context, s SessionContext, value any) error {
				return tc.err
			},
		}
		result := c.Write(context.Background(), fakeSession{}, WriteRequest{Value: true})
		require.Equal(t, tc.status, result.Status)
	}
}

func TestControlPointReadRejectedNormally(t *testing.T) {
	c := &Characteristic{
		Format:     FormatBool,
		Properties: Properties{Readable: true, IsControlPoint: true},
		OnRead: func(ctx context.Context, s SessionContext) (any, error) {
			return false, nil
		},
	}
	_, status := c.Read(context.Background(), fakeSession{}, ReadContextNormal)
	require.Equal(t, StatusInvalidStateOrUnknown, status)

	_, status = c.Read(context.Background(), fakeSession{}, ReadContextEvent)
	require.Equal(t, StatusSuccess, status)
}

func TestProgrammableSwitchEventSuppressedOutsideEvents(t *testing.T) {
	called := false
	c := &Characteristic{
		Format:                  FormatUInt8,
		Properties:              Properties{Readable: true},
		ProgrammableSwitchEvent: true,
		OnRead: func(ctx context.Context, s SessionContext) (any, error) {
			called = true
			return uint8(1), nil
		},
	}
	value, status := c.Read(context.Background(), fakeSession{}, ReadContextNormal)
	require.Equal(t, StatusSuccess, status)
	require.Nil(t, value)
	require.False(t, called)

	value, status = c.Read(context.Background(), fakeSession{}, ReadContextEvent)
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, uint8(1), value)
	require.True(t, called)
}

func TestFloatRejectsNaNAndMismatchedInfinity(t *testing.T) {
	require.False(t, validateFloatValue(NumericConstraints{Minimum: 0, Maximum: 100}, math.NaN()))
	require.False(t, validateFloatValue(NumericConstraints{Minimum: 0, Maximum: 100}, math.Inf(1)))
	require.True(t, validateFloatValue(NumericConstraints{Minimum: 0, Maximum: math.Inf(1)}, math.Inf(1)))
}

func TestWriteResponseRequiresSupport(t *testing.T) {
	c := &Characteristic{
		Format:     FormatBool,
		Properties: Properties{Writable: true},
		OnWrite: func(ctx context.Context, s SessionContext, value any) error {
			return nil
		},
	}
	result := c.Write(context.Background(), fakeSession{}, WriteRequest{Value: true, RequestsResponse: true})
	require.Equal(t, StatusNotReadable, result.Status)
}
