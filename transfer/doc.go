// Package transfer drives many concurrent URL transfers from one
// goroutine and reports each completion as a typed [result.Outcome] or
// [*result.Error].
//
// # Handles
//
// A [Handle] is one configured transfer. Build it with functional
// options, then run it alone with [Handle.Perform] or add it to a
// scheduler:
//
//	h, err := transfer.New(
//		transfer.WithURL("https://example.com/"),
//		transfer.WithTimeout(10*time.Second),
//		transfer.WithWriteBack(transfer.WriteTo(os.Stdout)),
//	)
//
// # Poll mode
//
// A [PollScheduler] is driven by a Perform/Wait loop. Wait can also watch
// the caller's own descriptors:
//
//	s, err := transfer.NewPollScheduler(func(s transfer.Scheduler, h *transfer.Handle, out result.Outcome, err error) {
//		// runs inside Perform; h is no longer a member
//	})
//	s.Add(h)
//	for {
//		running, err := s.Perform()
//		if err != nil || running == 0 {
//			break
//		}
//		s.Wait(nil, time.Second)
//	}
//
// # Event mode
//
// A [SocketScheduler] reports the descriptor and timeout it needs to the
// caller's event loop through a [SocketFunc] and a [TimerFunc], and is
// driven with [SocketScheduler.SocketAction].
//
// # Callbacks
//
// Transfers run on internal goroutines, but write-back, read-back and
// completion callbacks only ever run on the goroutine driving the
// scheduler, one at a time. Calling Perform, Wait, SocketAction or Close
// from inside a callback returns a Reentrant error; Add and Remove are
// allowed.
//
// # Sharing
//
// A [Share] lets handles use one cookie jar, DNS cache, TLS session
// cache, connection pool and public suffix list, guarded by a pluggable
// lock pair.
//
// # Tracing
//
// Schedulers record one "xfer.transfer" span per transfer with the tracer
// given to [WithTracer], and inject the trace context into request
// headers through the global OpenTelemetry propagator.
package transfer
