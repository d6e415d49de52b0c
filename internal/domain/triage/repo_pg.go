package triage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erms/erms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const evalCols = `id, tenant_id, patient_id, input_complaint, input_vitals, input_age,
	input_gender, input_history, priority, priority_label, priority_color, confidence,
	reasoning, recommendations, suggested_department, estimated_wait_time,
	model, request_id, prompt_tokens, completion_tokens, total_tokens,
	processing_time_ms, temperature, is_applied, applied_at, applied_by, created_at`

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	var e Evaluation
	err := row.Scan(&e.ID, &e.TenantID, &e.PatientID, &e.InputComplaint, &e.InputVitals, &e.InputAge,
		&e.InputGender, &e.InputHistory, &e.Priority, &e.PriorityLabel, &e.PriorityColor, &e.Confidence,
		&e.Reasoning, &e.Recommendations, &e.SuggestedDepartment, &e.EstimatedWaitTime,
		&e.Model, &e.RequestID, &e.PromptTokens, &e.CompletionTokens, &e.TotalTokens,
		&e.ProcessingTimeMs, &e.Temperature, &e.IsApplied, &e.AppliedAt, &e.AppliedBy, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Evaluation) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO triage_evaluation (id, tenant_id, patient_id, input_complaint, input_vitals,
			input_age, input_gender, input_history, priority, priority_label, priority_color,
			confidence, reasoning, recommendations, suggested_department, estimated_wait_time,
			model, request_id, prompt_tokens, completion_tokens, total_tokens,
			processing_time_ms, temperature, is_applied, applied_at, applied_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		e.ID, e.TenantID, e.PatientID, e.InputComplaint, e.InputVitals,
		e.InputAge, e.InputGender, e.InputHistory, e.Priority, e.PriorityLabel, e.PriorityColor,
		e.Confidence, e.Reasoning, e.Recommendations, e.SuggestedDepartment, e.EstimatedWaitTime,
		e.Model, e.RequestID, e.PromptTokens, e.CompletionTokens, e.TotalTokens,
		e.ProcessingTimeMs, e.Temperature, e.IsApplied, e.AppliedAt, e.AppliedBy, e.CreatedAt)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Evaluation, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+evalCols+` FROM triage_evaluation WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
