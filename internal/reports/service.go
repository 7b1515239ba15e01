package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/internal/movements"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

type movementQuerier interface {
	Query(ctx context.Context, filter movements.QueryFilter) ([]models.InventoryMovement, error)
}

// Input selects a report window. From and To, when both set, override Range.
type Input struct {
	Range  enums.ReportRange
	From   *time.Time
	To     *time.Time
	ItemID *uuid.UUID
	Type   *enums.MovementType
	Limit  int
}

// Report is a movement listing with its totals.
type Report struct {
	Window    TimeWindow              `json:"window"`
	Summary   Summary                 `json:"summary"`
	Movements []movements.MovementDTO `json:"movements"`
	rows      []models.InventoryMovement
}

// Rows exposes the raw movements behind the report.
func (r *Report) Rows() []models.InventoryMovement {
	return r.rows
}

// Service builds movement reports and CSV exports.
type Service interface {
	Movements(ctx context.Context, input Input) (*Report, error)
	ExportCSV(ctx context.Context, input Input) (filename string, body string, err error)
}

// ServiceParams configure the report service.
type ServiceParams struct {
	Movements movementQuerier
	Location  *time.Location
	Logger    *logger.Logger
}

type service struct {
	movements movementQuerier
	loc       *time.Location
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Movements == nil {
		return nil, fmt.Errorf("movement querier required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{movements: params.Movements, loc: loc, logg: logg, now: time.Now}, nil
}

func (s *service) Movements(ctx context.Context, input Input) (*Report, error) {
	window, err := s.window(input)
	if err != nil {
		return nil, err
	}
	rows, err := s.movements.Query(ctx, movements.QueryFilter{
		From:   window.From,
		To:     window.To,
		ItemID: input.ItemID,
		Type:   input.Type,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]movements.MovementDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, movements.NewMovementDTO(rows[i]))
	}
	return &Report{
		Window:    window,
		Summary:   Summarize(rows),
		Movements: dtos,
		rows:      rows,
	}, nil
}

func (s *service) ExportCSV(ctx context.Context, input Input) (string, string, error) {
	report, err := s.Movements(ctx, input)
	if err != nil {
		return "", "", err
	}
	body, err := ExportCSV(report.rows, s.loc)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render movement csv")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"rows": len(report.rows), "from": report.Window.From, "to": report.Window.To})
	s.logg.Info(ctx, "movement export rendered")
	return ExportFilename(s.now()), body, nil
}

func (s *service) window(input Input) (TimeWindow, error) {
	if input.From != nil || input.To != nil {
		if input.From == nil || input.To == nil {
			return TimeWindow{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
		}
		if !input.From.Before(*input.To) {
			return TimeWindow{}, pkgerrors.New(pkgerrors.CodeValidation, "date range start must precede its end")
		}
		return TimeWindow{From: input.From.UTC(), To: input.To.UTC()}, nil
	}
	rng := input.Range
	if rng == "" {
		rng = enums.ReportRangeWeek
	}
	return Window(rng, s.now(), s.loc)
}
