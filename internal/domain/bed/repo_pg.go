package bed

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

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const departmentCols = `id, tenant_id, name, code, description, floor, capacity, is_active`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Code, &d.Description, &d.Floor, &d.Capacity, &d.IsActive)
	return &d, err
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO departments (id, tenant_id, name, code, description, floor, capacity, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.TenantID, d.Name, d.Code, d.Description, d.Floor, d.Capacity, d.IsActive)
	return err
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	return scanDepartment(r.conn(ctx).QueryRow(ctx, `SELECT `+departmentCols+` FROM departments WHERE id = $1`, id))
}

func (r *departmentRepoPG) List(ctx context.Context) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+departmentCols+` FROM departments WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE departments SET name=$2, code=$3, description=$4, floor=$5, capacity=$6, is_active=$7
		WHERE id = $1`,
		d.ID, d.Name, d.Code, d.Description, d.Floor, d.Capacity, d.IsActive)
	return err
}

// =========== Bed Repository ===========

type bedRepoPG struct{ pool *pgxpool.Pool }

func NewBedRepoPG(pool *pgxpool.Pool) BedRepository { return &bedRepoPG{pool: pool} }

func (r *bedRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const bedCols = `id, tenant_id, bed_number, department_id, bed_type, floor, wing, status,
	features, current_patient_id, assigned_at, is_active`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.TenantID, &b.BedNumber, &b.DepartmentID, &b.BedType, &b.Floor, &b.Wing, &b.Status,
		&b.Features, &b.CurrentPatientID, &b.AssignedAt, &b.IsActive)
	return &b, err
}

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO beds (id, tenant_id, bed_number, department_id, bed_type, floor, wing,
			status, features, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.TenantID, b.BedNumber, b.DepartmentID, b.BedType, b.Floor, b.Wing,
		b.Status, b.Features, b.IsActive)
	return err
}

func (r *bedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM beds WHERE id = $1`, id))
}

func (r *bedRepoPG) List(ctx context.Context, departmentID *uuid.UUID, status string) ([]*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM beds WHERE is_active`
	var args []interface{}
	idx := 1
	if departmentID != nil {
		query += fmt.Sprintf(` AND department_id = $%d`, idx)
		args = append(args, *departmentID)
		idx++
	}
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, status)
		idx++
	}
	query += ` ORDER BY bed_number`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *bedRepoPG) Update(ctx context.Context, b *Bed) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE beds SET bed_number=$2, department_id=$3, bed_type=$4, floor=$5, wing=$6,
			status=$7, features=$8, current_patient_id=$9, assigned_at=$10, is_active=$11
		WHERE id = $1`,
		b.ID, b.BedNumber, b.DepartmentID, b.BedType, b.Floor, b.Wing,
		b.Status, b.Features, b.CurrentPatientID, b.AssignedAt, b.IsActive)
	return err
}

func (r *bedRepoPG) FindByPatient(ctx context.Context, patientID uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM beds WHERE current_patient_id = $1`, patientID))
}

func (r *bedRepoPG) ListAvailableByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bedCols+` FROM beds
		WHERE department_id = $1 AND status = $2 AND is_active
		ORDER BY bed_number`, departmentID, StatusAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
