package vitals

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

const vitalsCols = `id, patient_id, heart_rate, blood_pressure_systolic, blood_pressure_diastolic,
	blood_pressure, spo2, temperature, respiratory_rate, blood_glucose, pain_level, notes,
	source, is_critical, alert_generated, recorded_by, recorded_at, created_at`

func scanVitals(row pgx.Row) (*Vitals, error) {
	var v Vitals
	err := row.Scan(
		&v.ID, &v.PatientID, &v.HeartRate, &v.BloodPressureSystolic, &v.BloodPressureDiastolic,
		&v.BloodPressure, &v.SpO2, &v.Temperature, &v.RespiratoryRate, &v.BloodGlucose, &v.PainLevel, &v.Notes,
		&v.Source, &v.IsCritical, &v.AlertGenerated, &v.RecordedBy, &v.RecordedAt, &v.CreatedAt,
	)
	return &v, err
}

func (r *repoPG) Create(ctx context.Context, v *Vitals) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_vitals (`+vitalsCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		v.ID, v.PatientID, v.HeartRate, v.BloodPressureSystolic, v.BloodPressureDiastolic,
		v.BloodPressure, v.SpO2, v.Temperature, v.RespiratoryRate, v.BloodGlucose, v.PainLevel, v.Notes,
		v.Source, v.IsCritical, v.AlertGenerated, v.RecordedBy, v.RecordedAt, v.CreatedAt,
	)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Vitals, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+vitalsCols+` FROM patient_vitals WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Vitals
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}
