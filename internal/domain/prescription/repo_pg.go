package prescription

import (
	"context"
	"fmt"

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

const rxCols = `id, patient_id, medication_name, medication_code, medication_form, generic_name,
	dosage, dosage_unit, frequency, route, duration, quantity, refills,
	instructions, special_instructions, status, start_date, end_date, formulary_drug_id,
	prescribed_by, prescribed_at, discontinued_by, discontinued_at, discontinue_reason`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PatientID, &p.MedicationName, &p.MedicationCode, &p.MedicationForm, &p.GenericName,
		&p.Dosage, &p.DosageUnit, &p.Frequency, &p.Route, &p.Duration, &p.Quantity, &p.Refills,
		&p.Instructions, &p.SpecialInstructions, &p.Status, &p.StartDate, &p.EndDate, &p.FormularyDrugID,
		&p.PrescribedBy, &p.PrescribedAt, &p.DiscontinuedBy, &p.DiscontinuedAt, &p.DiscontinueReason,
	)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (`+rxCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		p.ID, p.PatientID, p.MedicationName, p.MedicationCode, p.MedicationForm, p.GenericName,
		p.Dosage, p.DosageUnit, p.Frequency, p.Route, p.Duration, p.Quantity, p.Refills,
		p.Instructions, p.SpecialInstructions, p.Status, p.StartDate, p.EndDate, p.FormularyDrugID,
		p.PrescribedBy, p.PrescribedAt, p.DiscontinuedBy, p.DiscontinuedAt, p.DiscontinueReason,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, patientID, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status string) ([]*Prescription, error) {
	query := `SELECT ` + rxCols + ` FROM prescriptions WHERE patient_id = $1`
	args := []interface{}{patientID}
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, len(args)+1)
		args = append(args, status)
	}
	query += ` ORDER BY prescribed_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET status=$2, discontinued_by=$3, discontinued_at=$4, discontinue_reason=$5,
			instructions=$6, special_instructions=$7, end_date=$8
		WHERE id = $1`,
		p.ID, p.Status, p.DiscontinuedBy, p.DiscontinuedAt, p.DiscontinueReason,
		p.Instructions, p.SpecialInstructions, p.EndDate)
	return err
}
