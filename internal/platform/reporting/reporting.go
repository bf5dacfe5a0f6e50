// Package reporting serves predefined admin measures as JSON or xlsx.
package reporting

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/clinic/internal/platform/auth"
	"github.com/carebridge/clinic/internal/platform/db"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Columns     []string                 `json:"columns"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "appointments-by-status",
		Name:        "Appointments by Status",
		Description: "Number of appointments in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC, status`,
	},
	{
		ID:          "prescriptions-by-status",
		Name:        "Prescriptions by Status",
		Description: "Number of prescriptions in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM prescriptions GROUP BY status ORDER BY total DESC, status`,
	},
	{
		ID:          "doctors-by-specialization",
		Name:        "Doctors by Specialization",
		Description: "Doctor profiles grouped by specialization with verified counts",
		SQL: `SELECT specialization, COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified
			FROM doctor_profiles GROUP BY specialization ORDER BY total DESC, specialization`,
	},
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Registered patients and how many of their accounts are active",
		SQL: `SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN u.is_active THEN 1 ELSE 0 END), 0) AS active_count
			FROM patient_profiles p JOIN users u ON u.id = p.user_id`,
	},
	{
		ID:          "health-metrics-by-type",
		Name:        "Health Metrics by Type",
		Description: "Recorded vital-sign readings grouped by metric type",
		SQL:         `SELECT metric_type, COUNT(*) AS total FROM health_metrics GROUP BY metric_type ORDER BY total DESC, metric_type`,
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Runner executes a measure query and returns its column names and rows.
type Runner interface {
	Run(ctx context.Context, sql string) ([]string, [][]interface{}, error)
}

// PGRunner runs measures on the request connection, or the pool.
type PGRunner struct {
	pool *pgxpool.Pool
}

func NewPGRunner(pool *pgxpool.Pool) *PGRunner {
	return &PGRunner{pool: pool}
}

func (r *PGRunner) Run(ctx context.Context, sql string) ([]string, [][]interface{}, error) {
	var q db.Querier = r.pool
	if c := db.ConnFromContext(ctx); c != nil {
		q = c
	}
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []string
	for _, fd := range rows.FieldDescriptions() {
		cols = append(cols, fd.Name)
	}

	var out [][]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	return cols, out, rows.Err()
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes registers the admin-only reporting routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.ListMeasures)
	g.GET("/:id", h.EvaluateMeasure)
	g.GET("/:id/export", h.ExportMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	m := FindMeasure(c.Param("id"))
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Report not found")
	}
	cols, rows, err := h.runner.Run(c.Request().Context(), m.SQL)
	if err != nil {
		return err
	}

	results := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		results = append(results, rec)
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now().UTC(),
		Columns:     cols,
		Results:     results,
	})
}

func (h *Handler) ExportMeasure(c echo.Context) error {
	m := FindMeasure(c.Param("id"))
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Report not found")
	}
	cols, rows, err := h.runner.Run(c.Request().Context(), m.SQL)
	if err != nil {
		return err
	}
	data, err := WriteXLSX("Report", cols, rows)
	if err != nil {
		return err
	}
	return Attachment(c, m.ID+"_"+time.Now().UTC().Format("20060102_150405")+".xlsx", data)
}

// Attachment sends an xlsx workbook as a download.
func Attachment(c echo.Context, filename string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, XLSXContentType, data)
}
