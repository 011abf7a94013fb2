package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/events"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/objectstore"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

// RemoteStatus summarises the remote steps of one export.
type RemoteStatus string

const (
	RemoteOK      RemoteStatus = "ok"
	RemoteSkipped RemoteStatus = "skipped"
	RemoteFailed  RemoteStatus = "failed"
)

// Stamper marks observations as exported.
type Stamper interface {
	StampExported(ctx context.Context, ids []string, at time.Time) error
}

// Config wires an Exporter. Remote steps run only when Remote is true and
// Objects is set.
type Config struct {
	Remote   bool
	Objects  objectstore.Store
	Logs     datastore.ExportLogStore
	Stamper  Stamper
	Events   events.Publisher
	Metrics  *metrics.ExportMetrics
	Location *time.Location
	Now      func() time.Time
}

// StepResult is the outcome of one remote step.
type StepResult struct {
	Step string
	Err  error
}

// Result describes a finished export.
type Result struct {
	FileName       string
	Rows           int
	ObservationIDs []string
	StoragePath    string
	Remote         []StepResult
	// RemoteErr joins the failed remote steps. It never affects the
	// local document.
	RemoteErr error
}

// RemoteStatus reports ok when every remote step succeeded, skipped when
// none ran, and failed otherwise.
func (r *Result) RemoteStatus() RemoteStatus {
	if len(r.Remote) == 0 {
		return RemoteSkipped
	}
	if r.RemoteErr != nil {
		return RemoteFailed
	}
	return RemoteOK
}

// Exporter builds spreadsheets and archives them.
type Exporter struct {
	cfg    Config
	logger logger.Logger
}

// New returns an Exporter. Nil Events and Now get defaults.
func New(cfg Config) *Exporter {
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Exporter{cfg: cfg, logger: logger.Global().Module("export")}
}

// Export writes observations to sink, then runs the remote steps. An error
// is returned only when the local document could not be produced.
func (e *Exporter) Export(ctx context.Context, owner model.Owner, observations []model.Observation, sink Sink) (*Result, error) {
	now := e.cfg.Now()
	rows := Rows(observations)
	res := &Result{
		FileName:       FileName(now.In(e.cfg.Location)),
		Rows:           len(rows),
		ObservationIDs: make([]string, 0, len(observations)),
	}
	for i := range observations {
		res.ObservationIDs = append(res.ObservationIDs, observations[i].ID)
	}

	data, err := BuildWorkbook(rows, e.cfg.Location)
	if err == nil {
		err = sink.Deliver(ctx, res.FileName, data)
	}
	if err != nil {
		e.cfg.Metrics.RecordStep(metrics.StepLocal, metrics.StatusError)
		return nil, errors.Wrap(err).
			Component("export").
			Context("operation", "export_local").
			Context("file", res.FileName).
			Build()
	}
	e.cfg.Metrics.RecordStep(metrics.StepLocal, metrics.StatusSuccess)
	e.cfg.Metrics.RecordRows(res.Rows)

	if e.cfg.Remote && e.cfg.Objects != nil {
		e.runRemote(ctx, owner, now, data, res)
	} else {
		for _, step := range []string{metrics.StepUpload, metrics.StepLog, metrics.StepStamp} {
			e.cfg.Metrics.RecordStep(step, metrics.StatusSkipped)
		}
	}

	e.logger.Info("export completed",
		logger.String("file", res.FileName),
		logger.Int("rows", res.Rows),
		logger.String("remote", string(res.RemoteStatus())))

	events.PublishOrLog(ctx, e.cfg.Events, events.New(events.ExportCompleted, owner, events.ExportData{
		FileName:       res.FileName,
		StoragePath:    res.StoragePath,
		ObservationIDs: res.ObservationIDs,
		Rows:           res.Rows,
		RemoteStatus:   string(res.RemoteStatus()),
	}))
	return res, nil
}

// runRemote runs upload, log and stamp independently; a failed step does
// not stop the next one.
func (e *Exporter) runRemote(ctx context.Context, owner model.Owner, now time.Time, data []byte, res *Result) {
	var failed []error
	record := func(step string, err error) {
		res.Remote = append(res.Remote, StepResult{Step: step, Err: err})
		if err == nil {
			e.cfg.Metrics.RecordStep(step, metrics.StatusSuccess)
			return
		}
		e.cfg.Metrics.RecordStep(step, metrics.StatusError)
		e.logger.Warn("export remote step failed",
			logger.String("step", step),
			logger.String("file", res.FileName),
			logger.Error(err))
		failed = append(failed, errors.New(err).
			Component("export").
			Category(errors.CategoryPartial).
			Context("step", step).
			Context("file", res.FileName).
			Build())
	}

	key := path.Join(owner.Folder(), res.FileName)
	stored, err := e.cfg.Objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), ContentType)
	if err == nil {
		res.StoragePath = stored
	}
	record(metrics.StepUpload, err)

	if e.cfg.Logs != nil {
		_, err = e.cfg.Logs.CreateExportLog(ctx, model.ExportLog{
			UserID:         owner.UserID(),
			ObservationIDs: res.ObservationIDs,
			FileName:       res.FileName,
			StoragePath:    res.StoragePath,
		})
	} else {
		err = fmt.Errorf("export log store is not configured")
	}
	record(metrics.StepLog, err)

	if e.cfg.Stamper != nil {
		err = e.cfg.Stamper.StampExported(ctx, res.ObservationIDs, now)
	} else {
		err = fmt.Errorf("observation store is not configured")
	}
	record(metrics.StepStamp, err)

	res.RemoteErr = errors.Join(failed...)
}
