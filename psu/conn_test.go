package psu

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-psu/scpi"
	"github.com/arloliu/go-psu/transport"
)

func TestConnOpenAndVerify(t *testing.T) {
	require := require.New(t)

	t.Run("Auto Verify", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		require.Equal(VerifiedState, conn.State())
		require.True(conn.IsConnected())

		id := conn.Identity()
		require.Equal("OWON", id.Manufacturer)
		require.Equal("SPE6103", id.Model)
		require.Equal(FamilySPE, conn.DeviceProfile().Family)

		require.Equal([]string{"*IDN?"}, stub.writtenLines())
	})

	t.Run("Explicit Verify", func(t *testing.T) {
		stub := newStubTransport()
		stub.script("*IDN?", testIdentity)

		cfg, err := NewConnectionConfig(
			WithTimeout(200*time.Millisecond),
			WithAutoVerify(false),
		)
		require.NoError(err)

		conn := NewConn(cfg)
		require.NoError(conn.OpenTransport(stub))
		require.Equal(OpenedState, conn.State())
		require.False(conn.IsConnected())

		id, err := conn.VerifyDevice()
		require.NoError(err)
		require.Equal("SPE6103", id.Model)
		require.Equal(VerifiedState, conn.State())

		// A second verification is answered from the cache.
		again, err := conn.VerifyDevice()
		require.NoError(err)
		require.Equal(id, again)
		require.Equal([]string{"*IDN?"}, stub.writtenLines())

		require.NoError(conn.Close())
	})

	t.Run("Unsupported Device", func(t *testing.T) {
		stub := newStubTransport()
		stub.script("*IDN?", "ACME,Widget,1,1")

		conn := NewConn(nil)
		err := conn.OpenTransport(stub)
		require.ErrorIs(err, ErrUnsupportedDevice)
		require.Contains(err.Error(), "ACME,Widget,1,1")

		// Verification failure released the transport.
		require.Equal(ClosedState, conn.State())
		require.False(stub.IsOpen())
	})

	t.Run("Malformed Identity", func(t *testing.T) {
		stub := newStubTransport()
		stub.script("*IDN?", "OWON,SPE6103,SN123")

		conn := NewConn(nil)
		err := conn.OpenTransport(stub)
		require.ErrorIs(err, scpi.ErrInvalidReply)
	})

	t.Run("Open While Open", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		err := conn.OpenTransport(newStubTransport())
		require.ErrorIs(err, ErrAlreadyOpen)
	})

	t.Run("Open After Close", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)
		require.NoError(conn.Close())

		err := conn.OpenTransport(newStubTransport())
		require.ErrorIs(err, ErrConnClosed)
	})
}

func TestConnOpenTransportFailure(t *testing.T) {
	require := require.New(t)

	mockTr := transport.NewMockTransport()
	mockTr.On("Open").Return(transport.ErrConnFailed)

	conn := NewConn(nil)
	err := conn.OpenTransport(mockTr)
	require.ErrorIs(err, transport.ErrConnFailed)
	require.Equal(UnopenedState, conn.State())

	mockTr.AssertExpectations(t)
}

func TestConnQuery(t *testing.T) {
	require := require.New(t)

	t.Run("Typed Round Trip", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		stub.script("MEAS:VOLT?", "12.345")
		reply, err := conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
		require.NoError(err)

		v, err := scpi.ParseFloat(reply)
		require.NoError(err)
		require.InDelta(12.345, v, 1e-9)
	})

	t.Run("Timeout Leaves Engine Usable", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		// No reply scripted: the instrument withholds its answer.
		_, err := conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
		require.ErrorIs(err, ErrTimeout)

		stub.script("MEAS:VOLT?", "3.300")
		reply, err := conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
		require.NoError(err)
		require.Equal("3.300", reply)

		require.Equal(uint64(1), conn.Metrics().TimeoutCount.Load())
	})

	t.Run("Malformed Reply", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		stub.script("OUTP?", "ERR")
		_, err := conn.Query(scpi.NewQuery(scpi.MnemOutputQuery))
		require.ErrorIs(err, ErrMalformedReply)
	})

	t.Run("Non-Query Command Rejected", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		_, err := conn.Query(scpi.NewCommand(scpi.MnemReset))
		require.ErrorIs(err, ErrNoReply)
	})

	t.Run("Not Connected", func(t *testing.T) {
		conn := NewConn(nil)
		_, err := conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
		require.ErrorIs(err, ErrNotConnected)
	})
}

func TestConnSend(t *testing.T) {
	require := require.New(t)

	t.Run("No Read Attempted", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		readsAfterVerify := stub.readCalls
		require.NoError(conn.Send(scpi.NewCommand(scpi.MnemVoltage, 12.0)))
		require.Equal(readsAfterVerify, stub.readCalls)
		require.Equal([]string{"*IDN?", "VOLT 12.000"}, stub.writtenLines())
	})

	t.Run("Query Via Send Rejected", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		err := conn.Send(scpi.NewQuery(scpi.MnemMeasureVoltage))
		require.ErrorIs(err, ErrExpectsReply)
	})

	t.Run("Invalid Command", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		err := conn.Send(scpi.NewCommand(""))
		require.ErrorIs(err, ErrInvalidCommand)
	})

	t.Run("Not Connected", func(t *testing.T) {
		conn := NewConn(nil)
		err := conn.Send(scpi.NewCommand(scpi.MnemReset))
		require.ErrorIs(err, ErrNotConnected)
	})
}

func TestConnDrainErrors(t *testing.T) {
	require := require.New(t)

	t.Run("Stops At Sentinel", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		stub.script("SYST:ERR?", `101,"Out of range"`, `0,"No error"`)

		entries, err := conn.DrainErrors()
		require.NoError(err)
		require.Len(entries, 1)
		require.Equal(101, entries[0].Code)
		require.Equal("Out of range", entries[0].Message)
	})

	t.Run("Empty Queue", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		stub.script("SYST:ERR?", `0,"No error"`)

		entries, err := conn.DrainErrors()
		require.NoError(err)
		require.Empty(entries)
	})

	t.Run("Drain Limit", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub, WithErrorDrainLimit(3))

		stub.script("SYST:ERR?",
			`1,"stuck"`, `2,"stuck"`, `3,"stuck"`, `4,"stuck"`)

		entries, err := conn.DrainErrors()
		require.ErrorIs(err, ErrDrainLimit)
		require.Len(entries, 3)
	})

	t.Run("Unparsable Entry", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		stub.script("SYST:ERR?", "bogus entry")

		_, err := conn.DrainErrors()
		require.ErrorIs(err, scpi.ErrInvalidReply)
	})
}

func TestConnClose(t *testing.T) {
	require := require.New(t)

	t.Run("Idempotent", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)

		require.NoError(conn.Close())
		require.NoError(conn.Close())
		require.Equal(1, stub.closeCalls)
		require.Equal(ClosedState, conn.State())
	})

	t.Run("Close From Unopened", func(t *testing.T) {
		conn := NewConn(nil)
		require.NoError(conn.Close())
		require.Equal(ClosedState, conn.State())
	})

	t.Run("Commands After Close", func(t *testing.T) {
		stub := newStubTransport()
		conn := newTestConn(t, stub)
		require.NoError(conn.Close())

		err := conn.Send(scpi.NewCommand(scpi.MnemReset))
		require.ErrorIs(err, ErrNotConnected)

		_, err = conn.Query(scpi.NewQuery(scpi.MnemOutputQuery))
		require.ErrorIs(err, ErrNotConnected)
	})
}

func TestConnSerializesQueries(t *testing.T) {
	require := require.New(t)

	stub := newStubTransport()
	conn := newTestConn(t, stub)

	stub.readDelay = 50 * time.Millisecond
	stub.script("MEAS:VOLT?", "1.000")
	stub.script("MEAS:CURR?", "2.000")

	var wg sync.WaitGroup
	wg.Add(2)

	start := make(chan struct{})
	go func() {
		defer wg.Done()
		<-start
		_, _ = conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
	}()
	go func() {
		defer wg.Done()
		<-start
		_, _ = conn.Query(scpi.NewQuery(scpi.MnemMeasureCurrent))
	}()

	close(start)
	wg.Wait()

	// The second caller's write must not hit the wire until the first
	// caller's reply has been consumed.
	events := stub.eventLog()
	require.Len(events, 6) // identity exchange plus two serialized queries

	require.Equal("write *IDN?", events[0])
	require.Equal("read "+testIdentity, events[1])
	for i := 2; i < 6; i += 2 {
		require.Contains(events[i], "write ")
		cmd := events[i][len("write "):]
		require.Contains(events[i+1], "read ")
		// Each write is directly followed by its own reply.
		switch cmd {
		case "MEAS:VOLT?":
			require.Equal("read 1.000", events[i+1])
		case "MEAS:CURR?":
			require.Equal("read 2.000", events[i+1])
		default:
			t.Fatalf("unexpected command %q", cmd)
		}
	}
}

func TestConnTraceHandlers(t *testing.T) {
	require := require.New(t)

	stub := newStubTransport()
	conn := newTestConn(t, stub)

	var mu sync.Mutex
	var got []TraceEvent
	id := conn.AddTraceHandler(func(ev TraceEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	stub.script("MEAS:VOLT?", "5.000")
	_, err := conn.Query(scpi.NewQuery(scpi.MnemMeasureVoltage))
	require.NoError(err)

	stub.script("SYST:ERR?", `301,"Overcurrent"`, `0,"No error"`)
	_, err = conn.DrainErrors()
	require.NoError(err)

	mu.Lock()
	kinds := make([]TraceKind, 0, len(got))
	for _, ev := range got {
		kinds = append(kinds, ev.Kind)
	}
	mu.Unlock()

	require.Equal([]TraceKind{
		TraceCommandSent, TraceReplyReceived,
		TraceCommandSent, TraceReplyReceived, TraceErrorDrained,
		TraceCommandSent, TraceReplyReceived,
	}, kinds)

	conn.RemoveTraceHandler(id)

	before := len(kinds)
	require.NoError(conn.Send(scpi.NewCommand(scpi.MnemClearStatus)))

	mu.Lock()
	require.Len(got, before)
	mu.Unlock()
}

func TestConnStateChangeHandlers(t *testing.T) {
	require := require.New(t)

	stub := newStubTransport()
	stub.script("*IDN?", testIdentity)

	conn := NewConn(nil)

	var transitions []string
	conn.AddConnStateChangeHandler(func(prev ConnState, next ConnState) {
		transitions = append(transitions, prev.String()+"->"+next.String())
	})

	require.NoError(conn.OpenTransport(stub))
	require.NoError(conn.Close())

	require.Equal([]string{
		"unopened->opened",
		"opened->verified",
		"verified->closed",
	}, transitions)
}

func TestConnIOError(t *testing.T) {
	require := require.New(t)

	stub := newStubTransport()
	conn := newTestConn(t, stub)

	// Simulate a yanked cable: the transport drops underneath the engine.
	stub.mu.Lock()
	stub.open = false
	stub.mu.Unlock()

	err := conn.Send(scpi.NewCommand(scpi.MnemVoltage, 5.0))
	require.Error(err)
	require.False(errors.Is(err, ErrTimeout))
}
