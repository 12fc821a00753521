// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
	"github.com/Thermoquad/jvcctl/pkg/jvc/jvctest"
)

// recorder collects exchange records
type recorder struct {
	mu      sync.Mutex
	records []jvc.ExchangeRecord
}

func (r *recorder) ObserveExchange(rec jvc.ExchangeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) all() []jvc.ExchangeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]jvc.ExchangeRecord(nil), r.records...)
}

func TestExecute_Operation(t *testing.T) {
	d := jvctest.NewDevice()
	c := openClient(t, startDevice(t, d))

	reply, err := c.Execute(context.Background(), jvc.NewPowerCommand(true))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if reply.Outcome != jvc.OutcomeAcknowledged || reply.Verb != "PW" {
		t.Errorf("reply = %s, want ACK PW", reply)
	}
}

func TestExecute_Inquiry(t *testing.T) {
	d := jvctest.NewDevice()
	c := openClient(t, startDevice(t, d))

	reply, err := c.Execute(context.Background(), jvc.PictureModes.Inquiry())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if reply.Outcome != jvc.OutcomeData || string(reply.Value) != "01" {
		t.Errorf("reply = %s, want DATA PM=\"01\"", reply)
	}
}

func TestExecute_RejectedIsNotAnError(t *testing.T) {
	d := jvctest.NewDevice()
	d.Reject(jvc.VerbPictureMode)
	c := openClient(t, startDevice(t, d))

	reply, err := c.Execute(context.Background(), jvc.PictureModes.Inquiry())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if reply.Outcome != jvc.OutcomeRejected {
		t.Errorf("outcome = %s, want NAK", reply.Outcome)
	}

	if _, err := c.PictureMode(context.Background()); !errors.Is(err, jvc.ErrRejected) {
		t.Errorf("PictureMode: expected ErrRejected, got %v", err)
	}
}

func TestExecute_TimeoutKeepsConnection(t *testing.T) {
	d := jvctest.NewDevice()
	d.Silence(jvc.VerbMask)
	cfg := startDevice(t, d)
	cfg.Timeout = 100 * time.Millisecond
	c := openClient(t, cfg)

	start := time.Now()
	_, err := c.MaskMode(context.Background())
	if !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond || elapsed > time.Second {
		t.Errorf("timed out after %s, want about 100ms", elapsed)
	}
	if jvc.IsFatal(err) {
		t.Error("a timeout must not be fatal")
	}
	if !c.IsOpen() {
		t.Fatal("timeout closed the connection")
	}

	s, err := c.PictureMode(context.Background())
	if err != nil {
		t.Fatalf("follow-up inquiry failed: %v", err)
	}
	if s.Name != "cinema" {
		t.Errorf("picture mode = %s, want cinema", s)
	}
}

func TestExecute_CommandTimeoutOverride(t *testing.T) {
	d := jvctest.NewDevice()
	d.Delay(jvc.VerbPower, 150*time.Millisecond)
	cfg := startDevice(t, d)
	cfg.Timeout = 50 * time.Millisecond
	c := openClient(t, cfg)

	cmd := jvc.NewPowerCommand(true).WithTimeout(time.Second)
	if _, err := c.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute with a longer timeout failed: %v", err)
	}
}

func TestExecute_ContextDeadline(t *testing.T) {
	d := jvctest.NewDevice()
	d.Silence(jvc.VerbPower)
	c := openClient(t, startDevice(t, d))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Execute(ctx, jvc.NewPowerCommand(true))
	if !errors.Is(err, jvc.ErrCommandTimedOut) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrCommandTimedOut wrapping DeadlineExceeded, got %v", err)
	}
}

func TestExecute_StaleReplySkipped(t *testing.T) {
	d := jvctest.NewDevice()
	d.Delay(jvc.VerbPictureMode, 150*time.Millisecond)
	cfg := startDevice(t, d)
	cfg.Timeout = 50 * time.Millisecond

	rec := &recorder{}
	c := openClient(t, cfg, jvc.WithObserver(rec))

	if _, err := c.PictureMode(context.Background()); !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut, got %v", err)
	}

	// The late picture mode reply arrives during this exchange
	reply, err := c.Execute(context.Background(), jvc.InputModes.Inquiry().WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("input inquiry failed: %v", err)
	}
	if reply.Verb != "IP" || string(reply.Value) != "6" {
		t.Errorf("reply = %s, want DATA IP=\"6\"", reply)
	}

	records := rec.all()
	last := records[len(records)-1]
	if len(last.Received) != 4 {
		t.Fatalf("expected 2 stale and 2 current frames, got %d frames", len(last.Received))
	}
	stale, err := jvc.Decode(last.Received[0])
	if err != nil || stale.Verb != "PM" {
		t.Errorf("first frame = %v (%v), want the stale PM reply", stale, err)
	}
}

func TestExecute_LateReplySharedPrefix(t *testing.T) {
	d := jvctest.NewDevice()
	d.SetState(jvc.VerbContentType, "4")
	d.SetState(jvc.VerbLampPower, "1")
	d.Delay(jvc.VerbContentType, 150*time.Millisecond)
	cfg := startDevice(t, d)
	cfg.Timeout = 50 * time.Millisecond

	rec := &recorder{}
	c := openClient(t, cfg, jvc.WithObserver(rec))

	if _, err := c.ContentType(context.Background()); !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut, got %v", err)
	}

	// PMCT and PMLP replies both echo PM
	reply, err := c.Execute(context.Background(), jvc.LampPowerModes.Inquiry().WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("lamp power inquiry failed: %v", err)
	}
	if string(reply.Value) != "1" {
		t.Fatalf("lamp power answered with %q, want \"1\"", reply.Value)
	}
	if s := jvc.LampPowerModes.Decode(reply.Value); s.Name != "high" {
		t.Errorf("lamp power = %s, want high", s)
	}

	records := rec.all()
	last := records[len(records)-1]
	if len(last.Received) != 4 {
		t.Errorf("expected 2 late and 2 current frames, got %d frames", len(last.Received))
	}
}

// openSerializer connects a bare Serializer to the device behind cfg
func openSerializer(t *testing.T, cfg jvc.Config, opts jvc.SerializerOptions) (*jvc.Serializer, *jvc.Transport) {
	t.Helper()
	tr := jvc.NewTransport(
		jvc.TCPDialer{Host: cfg.Host, Port: cfg.Port, Timeout: time.Second},
		jvc.TransportOptions{HandshakeTimeout: time.Second},
	)
	if err := tr.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return jvc.NewSerializer(tr, opts), tr
}

func lateReplies(t *testing.T, s *jvc.Serializer) int {
	t.Helper()
	n, err := s.LateReplies(context.Background())
	if err != nil {
		t.Fatalf("LateReplies failed: %v", err)
	}
	return n
}

func TestSerializer_LateReplyWindow(t *testing.T) {
	d := jvctest.NewDevice()
	d.Silence(jvc.VerbContentType)
	d.SetState(jvc.VerbLampPower, "1")
	s, _ := openSerializer(t, startDevice(t, d), jvc.SerializerOptions{
		OperationTimeout: 50 * time.Millisecond,
		LateReplyWindow:  100 * time.Millisecond,
	})
	ctx := context.Background()

	if _, err := s.Execute(ctx, jvc.ContentTypes.Inquiry()); !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut, got %v", err)
	}
	if n := lateReplies(t, s); n != 1 {
		t.Fatalf("late replies = %d, want 1", n)
	}

	// Inside the window a PM reply is taken as the owed answer, so the
	// inquiry fails instead of returning another setting's value
	if _, err := s.Execute(ctx, jvc.LampPowerModes.Inquiry()); !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut inside the window, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if n := lateReplies(t, s); n != 0 {
		t.Fatalf("late replies = %d after the window, want 0", n)
	}

	reply, err := s.Execute(ctx, jvc.LampPowerModes.Inquiry())
	if err != nil {
		t.Fatalf("inquiry after the window failed: %v", err)
	}
	if string(reply.Value) != "1" {
		t.Errorf("lamp power answered with %q, want \"1\"", reply.Value)
	}
}

func TestSerializer_LateRepliesForgottenOnReopen(t *testing.T) {
	d := jvctest.NewDevice()
	d.Silence(jvc.VerbContentType)
	s, tr := openSerializer(t, startDevice(t, d), jvc.SerializerOptions{
		OperationTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()

	if _, err := s.Execute(ctx, jvc.ContentTypes.Inquiry()); !errors.Is(err, jvc.ErrCommandTimedOut) {
		t.Fatalf("expected ErrCommandTimedOut, got %v", err)
	}
	if n := lateReplies(t, s); n != 1 {
		t.Fatalf("late replies = %d, want 1", n)
	}

	tr.Close()
	if err := tr.Open(ctx); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if n := lateReplies(t, s); n != 0 {
		t.Errorf("late replies = %d after reopen, want 0", n)
	}
	if _, err := s.Execute(ctx, jvc.PictureModes.Inquiry()); err != nil {
		t.Errorf("inquiry after reopen failed: %v", err)
	}
}

func TestExecute_MalformedReplyReleasesGate(t *testing.T) {
	d := jvctest.NewDevice()
	d.Override(jvc.VerbPower, []byte{jvc.HeaderAck, jvc.EndByte})
	c := openClient(t, startDevice(t, d))

	_, err := c.PowerOn(context.Background())
	if !errors.Is(err, jvc.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if !jvc.NeedsReconnect(err) {
		t.Error("a malformed frame should call for a reconnect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.PowerOn(ctx); err != nil {
		t.Fatalf("gate not released after malformed reply: %v", err)
	}
}

func TestExecute_MalformedInquiryReply(t *testing.T) {
	d := jvctest.NewDevice()
	d.Override(jvc.VerbPictureMode, []byte{jvc.HeaderResponse, jvc.EndByte})
	c := openClient(t, startDevice(t, d))

	_, err := c.PictureMode(context.Background())
	if !errors.Is(err, jvc.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := c.PictureMode(ctx)
	if err != nil {
		t.Fatalf("gate not released after malformed reply: %v", err)
	}
	if s.Name != "cinema" {
		t.Errorf("picture mode = %s, want cinema", s)
	}
}

func TestExecute_DataReplyToOperation(t *testing.T) {
	d := jvctest.NewDevice()
	d.Override(jvc.VerbRemote, jvc.EncodeReply(jvc.OutcomeData, "RC", []byte("1")))
	c := openClient(t, startDevice(t, d))

	if _, err := c.ExecCommand(context.Background(), "menu, menu"); !errors.Is(err, jvc.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestExecute_Serialized(t *testing.T) {
	d := jvctest.NewDevice()
	d.Delay(jvc.VerbPictureMode, 2*time.Millisecond)
	d.Delay(jvc.VerbInput, 2*time.Millisecond)
	cfg := startDevice(t, d)
	cfg.Timeout = 2 * time.Second

	rec := &recorder{}
	c := openClient(t, cfg, jvc.WithObserver(rec))

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			var s jvc.State
			if i%2 == 0 {
				s, err = c.PictureMode(context.Background())
				if err == nil && s.Name != "cinema" {
					t.Errorf("caller %d: picture mode = %s", i, s)
				}
			} else {
				s, err = c.InputMode(context.Background())
				if err == nil && s.Name != "hdmi1" {
					t.Errorf("caller %d: input = %s", i, s)
				}
			}
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if n := len(rec.all()); n != callers {
		t.Fatalf("recorded %d exchanges, want %d", n, callers)
	}

	// Each command must reach the device only after it began writing the
	// last reply of the one before
	seen := d.Exchanges()
	if len(seen) != callers {
		t.Fatalf("device saw %d exchanges, want %d", len(seen), callers)
	}
	sort.Slice(seen, func(i, j int) bool { return seen[i].Arrived.Before(seen[j].Arrived) })
	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if cur.Arrived.Before(prev.Replied) {
			t.Errorf("%s arrived %s before the last reply to %s was written",
				cur.Command.Body, prev.Replied.Sub(cur.Arrived), prev.Command.Body)
		}
	}
}

func TestExecute_Closed(t *testing.T) {
	d := jvctest.NewDevice()
	c := openClient(t, startDevice(t, d))
	c.Close()

	_, err := c.PowerOn(context.Background())
	if !errors.Is(err, jvc.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	if !jvc.IsFatal(err) {
		t.Error("closed connection should be fatal")
	}
}

func TestExecute_DeviceGone(t *testing.T) {
	d := jvctest.NewDevice()
	c := openClient(t, startDevice(t, d))
	d.Close()

	_, err := c.PowerState(context.Background())
	if !jvc.IsFatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	if c.IsOpen() {
		t.Error("client still open after the device went away")
	}
}

func TestExecute_InvalidCommand(t *testing.T) {
	d := jvctest.NewDevice()
	c := openClient(t, startDevice(t, d))

	if _, err := c.Execute(context.Background(), jvc.Operation("X", "")); !errors.Is(err, jvc.ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
	if len(d.Received()) != 0 {
		t.Error("invalid command reached the device")
	}
}
