package patient

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

const patientCols = `id, tenant_id, patient_id, name, age, gender, phone,
	emergency_contact, emergency_contact_name, address, blood_group,
	complaint, history, status, priority, priority_label, priority_color,
	department_id, bed_id, admitted_at, admitted_by,
	discharged_at, discharged_by, discharge_notes,
	created_at, updated_at, deleted_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.TenantID, &p.PatientID, &p.Name, &p.Age, &p.Gender, &p.Phone,
		&p.EmergencyContact, &p.EmergencyContactName, &p.Address, &p.BloodGroup,
		&p.Complaint, &p.History, &p.Status, &p.Priority, &p.PriorityLabel, &p.PriorityColor,
		&p.DepartmentID, &p.BedID, &p.AdmittedAt, &p.AdmittedBy,
		&p.DischargedAt, &p.DischargedBy, &p.DischargeNotes,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (`+patientCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		p.ID, p.TenantID, p.PatientID, p.Name, p.Age, p.Gender, p.Phone,
		p.EmergencyContact, p.EmergencyContactName, p.Address, p.BloodGroup,
		p.Complaint, p.History, p.Status, p.Priority, p.PriorityLabel, p.PriorityColor,
		p.DepartmentID, p.BedID, p.AdmittedAt, p.AdmittedBy,
		p.DischargedAt, p.DischargedBy, p.DischargeNotes,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE deleted_at IS NULL`
	var args []interface{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Priority != nil {
		where += fmt.Sprintf(` AND priority = $%d`, idx)
		args = append(args, *f.Priority)
		idx++
	}
	if f.DepartmentID != nil {
		where += fmt.Sprintf(` AND department_id = $%d`, idx)
		args = append(args, *f.DepartmentID)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR patient_id ILIKE $%d OR phone ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientCols + ` FROM patients` + where +
		` ORDER BY priority NULLS LAST, created_at DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, age=$3, gender=$4, phone=$5,
			emergency_contact=$6, emergency_contact_name=$7, address=$8, blood_group=$9,
			complaint=$10, history=$11, status=$12, priority=$13, priority_label=$14, priority_color=$15,
			department_id=$16, bed_id=$17, admitted_at=$18, admitted_by=$19,
			discharged_at=$20, discharged_by=$21, discharge_notes=$22, updated_at=$23
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone,
		p.EmergencyContact, p.EmergencyContactName, p.Address, p.BloodGroup,
		p.Complaint, p.History, p.Status, p.Priority, p.PriorityLabel, p.PriorityColor,
		p.DepartmentID, p.BedID, p.AdmittedAt, p.AdmittedBy,
		p.DischargedAt, p.DischargedBy, p.DischargeNotes, p.UpdatedAt,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, deletedAt)
	return err
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func (r *repoPG) ListUntriaged(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE deleted_at IS NULL AND status != $1
		  AND (priority IS NULL OR priority < 1 OR priority > 4)`, StatusDischarged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
