// Package reports implements the flood report workflows: validation, image
// upload, persistence and ownership checks.
package reports

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/patrickwarner/floodwatch/internal/models"
	"github.com/patrickwarner/floodwatch/internal/observability"
	"github.com/patrickwarner/floodwatch/internal/storage"
	"github.com/patrickwarner/floodwatch/internal/token"
)

// Repository persists reports.
type Repository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, id string, changes models.ReportChanges) (*models.Report, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Report, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ImageStore uploads report photos and removes them again when the write
// they belong to fails.
type ImageStore interface {
	Upload(ctx context.Context, img storage.Image) (storage.Object, error)
	Remove(ctx context.Context, key string) error
}

// EventPublisher announces committed mutations.
type EventPublisher interface {
	Publish(ctx context.Context, action, id string) error
}

// Input is a create or update request as received. Coordinates and
// WaterLevel are the raw submitted text.
type Input struct {
	Location    string
	Coordinates string
	WaterLevel  string
	Description string
	Status      string
	Image       *storage.Image
}

// Service runs report mutations and reads.
type Service struct {
	repo    Repository
	images  ImageStore
	events  EventPublisher
	logger  *zap.Logger
	metrics observability.MetricsRegistry
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes an event after every successful mutation.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService wires a Service.
func NewService(repo Repository, images ImageStore, logger *zap.Logger, metrics observability.MetricsRegistry, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		images:  images,
		logger:  logger,
		metrics: metrics,
		tracer:  observability.Tracer("reports"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, uploads its image if any and stores a new ACTIVE
// report owned by caller.
func (s *Service) Create(ctx context.Context, caller token.Claims, in Input) (report *models.Report, err error) {
	ctx, span := s.tracer.Start(ctx, "reports.Create")
	defer func() { s.finish(span, "create", err) }()

	if strings.TrimSpace(caller.ID) == "" {
		return nil, ErrUnauthorized
	}
	if _, err := checkFields(in, false); err != nil {
		return nil, err
	}
	p, err := parseValues(in, nil)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	report = &models.Report{
		Location:    p.Location,
		Coordinates: datatypes.NewJSONType(p.Coordinates),
		WaterLevel:  p.WaterLevel,
		Description: p.Description,
		Status:      models.StatusActive,
		UserID:      caller.ID,
	}
	if uploaded != nil {
		report.ImageURL = &uploaded.URL
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, s.compensate(ctx, uploaded, err)
	}

	span.SetAttributes(attribute.String("report.id", report.ID))
	s.logger.Info("report created",
		zap.String("report_id", report.ID),
		zap.String("user_id", caller.ID),
		zap.Bool("has_image", uploaded != nil))
	s.publish(ctx, "create", report.ID)
	return report, nil
}

// Update replaces the editable fields of report id. The image is kept unless
// a new one is supplied; status changes only when provided.
func (s *Service) Update(ctx context.Context, caller token.Claims, id string, in Input) (report *models.Report, err error) {
	ctx, span := s.tracer.Start(ctx, "reports.Update", trace.WithAttributes(attribute.String("report.id", id)))
	defer func() { s.finish(span, "update", err) }()

	if strings.TrimSpace(caller.ID) == "" {
		return nil, ErrUnauthorized
	}
	status, err := checkFields(in, true)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := parseValues(in, status)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	imageURL := existing.ImageURL
	if uploaded != nil {
		imageURL = &uploaded.URL
	}

	report, err = s.repo.Update(ctx, id, models.ReportChanges{
		Location:    p.Location,
		Coordinates: p.Coordinates,
		WaterLevel:  p.WaterLevel,
		Description: p.Description,
		ImageURL:    imageURL,
		Status:      p.Status,
	})
	if err != nil {
		return nil, s.compensate(ctx, uploaded, err)
	}

	s.logger.Info("report updated",
		zap.String("report_id", id),
		zap.String("user_id", caller.ID),
		zap.String("status", string(report.Status)))
	s.publish(ctx, "update", id)
	return report, nil
}

// Delete removes report id if caller owns it.
func (s *Service) Delete(ctx context.Context, caller token.Claims, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "reports.Delete", trace.WithAttributes(attribute.String("report.id", id)))
	defer func() { s.finish(span, "delete", err) }()

	if strings.TrimSpace(caller.ID) == "" {
		return ErrUnauthorized
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != caller.ID {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("report deleted", zap.String("report_id", id), zap.String("user_id", caller.ID))
	s.publish(ctx, "delete", id)
	return nil
}

// List returns every report newest first with owner name and email.
func (s *Service) List(ctx context.Context) ([]models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "reports.List")
	defer span.End()

	reports, err := s.repo.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("reports.count", len(reports)))
	return reports, nil
}

// CountUsers returns the number of registered users.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reports.CountUsers")
	defer span.End()

	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

func (s *Service) upload(ctx context.Context, img *storage.Image) (*storage.Object, error) {
	if img == nil {
		return nil, nil
	}
	obj, err := s.images.Upload(ctx, *img)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// compensate removes an image whose report could not be written. The returned
// error carries both failures when the removal fails too.
func (s *Service) compensate(ctx context.Context, uploaded *storage.Object, cause error) error {
	if uploaded == nil {
		return cause
	}
	if err := s.images.Remove(context.WithoutCancel(ctx), uploaded.Key); err != nil {
		s.logger.Error("orphaned image left in store",
			zap.String("key", uploaded.Key), zap.Error(err))
		return multierr.Append(cause, err)
	}
	s.logger.Warn("removed image after failed write", zap.String("key", uploaded.Key))
	return cause
}

func (s *Service) publish(ctx context.Context, action, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, action, id); err != nil {
		s.logger.Warn("report event not published",
			zap.String("action", action), zap.String("report_id", id), zap.Error(err))
	}
}

func (s *Service) finish(span trace.Span, action string, err error) {
	outcome := Outcome(err)
	s.metrics.IncrementReportMutations(action, outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Outcome classifies a workflow error for metrics and logs.
func Outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrUploadFailed):
		return "upload_failed"
	default:
		return "error"
	}
}
