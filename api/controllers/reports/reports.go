package reports

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/stockhold-backend/api/responses"
	"github.com/angelmondragon/stockhold-backend/api/validators"
	internalmovements "github.com/angelmondragon/stockhold-backend/internal/movements"
	internalreports "github.com/angelmondragon/stockhold-backend/internal/reports"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

// Movements implements queryMovements: the movements in the requested window
// with IN/OUT totals. Plain dates in from/to are read in loc.
func Movements(svc internalreports.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}

		input, err := parseInput(r, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Movements(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

// ExportCSV implements exportMovementsCsv and serves the file as an attachment.
func ExportCSV(svc internalreports.Service, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "report service unavailable"))
			return
		}

		input, err := parseInput(r, loc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename, body, err := svc.ExportCSV(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil && logg != nil {
			logg.Error(r.Context(), "write movement export", err)
		}
	}
}

func parseInput(r *http.Request, loc *time.Location) (internalreports.Input, error) {
	var input internalreports.Input

	if raw := strings.TrimSpace(r.URL.Query().Get("range")); raw != "" {
		rng, err := enums.ParseReportRange(strings.ToLower(raw))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid range").WithDetails(map[string]any{"field": "range"})
		}
		input.Range = rng
	}

	from, err := validators.ParseQueryTime(r, "from", loc)
	if err != nil {
		return input, err
	}
	to, err := validators.ParseQueryTime(r, "to", loc)
	if err != nil {
		return input, err
	}
	input.From, input.To = from, to

	itemID, err := validators.ParseQueryUUID(r, "itemId")
	if err != nil {
		return input, err
	}
	input.ItemID = itemID

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		movementType, err := enums.ParseMovementType(strings.ToUpper(raw))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type").WithDetails(map[string]any{"field": "type"})
		}
		input.Type = &movementType
	}

	limit, err := validators.ParseQueryInt(r, "limit", internalmovements.MaxQueryLimit, 1, internalmovements.MaxQueryLimit)
	if err != nil {
		return input, err
	}
	input.Limit = limit
	return input, nil
}
