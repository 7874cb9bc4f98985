package main

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/adamwoolhether/xfer/result"
	"github.com/adamwoolhether/xfer/transfer"
	"github.com/adamwoolhether/xfer/transfer/download"
)

// report is the fate of one job.
type report struct {
	job     Job
	outcome result.Outcome
	err     error
	status  int
	bytes   int64
	elapsed time.Duration
}

func (r report) failed() bool {
	return r.err != nil || !r.outcome.Succeeded()
}

// batch owns the handles, sinks and share built for a job file.
type batch struct {
	logger  *slog.Logger
	share   *transfer.Share
	handles []*transfer.Handle
	sinks   map[*transfer.Handle]*download.Sink
	uploads map[*transfer.Handle]*os.File
	reports map[*transfer.Handle]*report
}

var shareCategories = map[string]transfer.Category{
	"cookie":      transfer.ShareCookie,
	"dns":         transfer.ShareDNS,
	"tls_session": transfer.ShareTLSSession,
	"connection":  transfer.ShareConnection,
	"psl":         transfer.SharePSL,
}

func newBatch(cfg Config, logger *slog.Logger) (*batch, error) {
	b := &batch{
		logger:  logger,
		sinks:   make(map[*transfer.Handle]*download.Sink),
		uploads: make(map[*transfer.Handle]*os.File),
		reports: make(map[*transfer.Handle]*report),
	}

	if len(cfg.Share) > 0 {
		s, err := transfer.NewShare(transfer.WithShareLogger(logger))
		if err != nil {
			return nil, err
		}
		for _, name := range cfg.Share {
			if _, err := s.Enable(shareCategories[name]); err != nil {
				return nil, err
			}
		}
		b.share = s
	}

	for _, j := range cfg.Jobs {
		h, err := b.handleFor(cfg, j)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("job %s: %w", j.URL, err), b.close())
		}
		b.handles = append(b.handles, h)
		b.reports[h] = &report{job: j}
	}

	return b, nil
}

func (b *batch) handleFor(cfg Config, j Job) (*transfer.Handle, error) {
	opts := []transfer.Option{
		transfer.WithURL(j.URL),
		transfer.WithLogger(b.logger),
		transfer.WithTimeout(j.timeout()),
		transfer.WithUserAgent(cfg.UserAgent),
		transfer.WithProxy(j.Proxy),
		transfer.WithPinnedPublicKey(j.PinnedKey),
	}
	if j.Method != "" {
		opts = append(opts, transfer.WithMethod(j.Method))
	}
	if len(j.Headers) > 0 {
		hdr := make(http.Header, len(j.Headers))
		for k, v := range j.Headers {
			hdr.Set(k, v)
		}
		opts = append(opts, transfer.WithHeaders(hdr))
	}
	if j.FailOnError {
		opts = append(opts, transfer.WithFailOnError())
	}
	if j.NoFollow {
		opts = append(opts, transfer.WithNoFollowRedirects())
	}
	if j.Compressed {
		opts = append(opts, transfer.WithAcceptEncoding(""))
	}
	if b.share != nil {
		opts = append(opts, transfer.WithShare(b.share))
	}

	var upload *os.File
	if j.Upload != "" {
		f, err := os.Open(j.Upload)
		if err != nil {
			return nil, fmt.Errorf("opening upload: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat upload: %w", err)
		}
		upload = f
		opts = append(opts, transfer.WithReadBack(transfer.ReadFrom(f), info.Size()))
		if j.Method == "" {
			opts = append(opts, transfer.WithMethod(http.MethodPut))
		}
	}

	h, err := transfer.New(opts...)
	if err != nil {
		if upload != nil {
			upload.Close()
		}
		return nil, err
	}
	if upload != nil {
		b.uploads[h] = upload
	}

	if j.Output == "" {
		return h, nil
	}

	var dlOpts []download.Option
	if j.SHA256 != "" {
		dlOpts = append(dlOpts, download.WithChecksum(sha256.New(), j.SHA256))
	}
	if j.MaxSize > 0 {
		dlOpts = append(dlOpts, download.WithMaxSize(j.MaxSize))
	}
	if j.SkipExisting {
		dlOpts = append(dlOpts, download.WithSkipExisting())
	}
	dlOpts = append(dlOpts, download.WithProgress())

	sink, err := download.New(j.Output, b.logger, dlOpts...)
	if errors.Is(err, download.ErrDestinationExists) {
		return h, nil
	}
	if err != nil {
		return nil, errors.Join(err, b.release(h))
	}
	b.sinks[h] = sink

	return h, h.SetWriteBack(sink.Write)
}

// pending lists the handles that still have a transfer to run.
func (b *batch) pending() []*transfer.Handle {
	var hs []*transfer.Handle
	for _, h := range b.handles {
		r := b.reports[h]
		if r.outcome == result.None && r.err == nil {
			hs = append(hs, h)
		}
	}

	return hs
}

// skip marks jobs whose destination already exists as done.
func (b *batch) skip() {
	for _, h := range b.handles {
		r := b.reports[h]
		if r.job.Output != "" && b.sinks[h] == nil {
			r.outcome = result.OK
			b.logger.Info("skipped", "url", r.job.URL, "output", r.job.Output)
		}
	}
}

// complete is the scheduler's completion callback.
func (b *batch) complete(_ transfer.Scheduler, h *transfer.Handle, out result.Outcome, err error) {
	r := b.reports[h]
	r.outcome, r.err = out, err
	r.status = h.ResponseCode()
	r.bytes = h.BytesDownloaded()
	r.elapsed = h.TotalTime()

	if sink, ok := b.sinks[h]; ok {
		if sink.Err() != nil {
			r.err = errors.Join(sink.Err(), sink.Abort())
		} else if ferr := sink.Finish(out, err); ferr != nil && err == nil && out.Succeeded() {
			r.err = ferr
		}
	}

	if r.failed() {
		b.logger.Error("transfer failed", "url", r.job.URL, "outcome", out, "error", r.err, "detail", h.ErrorDetail())
		return
	}

	b.logger.Info("transfer done", "url", r.job.URL, "status", r.status, "bytes", r.bytes, "elapsed", r.elapsed)
}

// cancel records cause for every job that has not completed.
func (b *batch) cancel(cause error) {
	for _, h := range b.pending() {
		b.reports[h].err = cause
		if sink, ok := b.sinks[h]; ok {
			if err := sink.Abort(); err != nil {
				b.logger.Error("aborting download", "error", err)
			}
		}
	}
}

// write prints one line per job in file order.
func (b *batch) write(w io.Writer) (failed int, err error) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tOUTCOME\tSTATUS\tBYTES\tTIME")

	for _, h := range b.handles {
		r := b.reports[h]

		outcome := r.outcome.String()
		if r.err != nil {
			outcome = r.err.Error()
		}
		if r.failed() {
			failed++
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.job.URL, outcome, r.status, r.bytes, r.elapsed.Round(time.Millisecond))
	}

	return failed, tw.Flush()
}

func (b *batch) release(h *transfer.Handle) error {
	var errs []error
	if f, ok := b.uploads[h]; ok {
		errs = append(errs, f.Close())
	}
	if b.share != nil {
		errs = append(errs, b.share.Detach(h))
	}
	errs = append(errs, h.Close())

	return errors.Join(errs...)
}

// close releases every handle, then the share.
func (b *batch) close() error {
	var errs []error
	for _, h := range b.handles {
		errs = append(errs, b.release(h))
	}
	if b.share != nil {
		errs = append(errs, b.share.Close())
	}

	return errors.Join(errs...)
}

// schedulerOptions maps the job file onto scheduler options.
func schedulerOptions(cfg Config, logger *slog.Logger) []transfer.SchedulerOption {
	opts := []transfer.SchedulerOption{
		transfer.WithSchedulerLogger(logger),
		transfer.WithTracer(otel.Tracer("github.com/adamwoolhether/xfer/cmd/xfer")),
		transfer.WithMaxTotalTransfers(cfg.MaxTotal),
		transfer.WithMaxConnsPerHost(cfg.MaxConnsPerHost),
	}
	if cfg.Multiplex > 0 {
		opts = append(opts, transfer.WithMultiplexing(cfg.Multiplex))
	}
	if cfg.RPS > 0 {
		opts = append(opts, transfer.WithThrottle(cfg.RPS, cfg.Burst))
	}

	return opts
}
