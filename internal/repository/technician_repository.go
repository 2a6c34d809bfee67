package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/utils"
)

const technicianColumns = "id,name,email,password_hash,is_team_lead,is_admin,is_active,team_lead_id,created_at"

type TechnicianRepo struct{ DB *sql.DB }

func NewTechnicianRepo(db *sql.DB) *TechnicianRepo { return &TechnicianRepo{DB: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTechnician(s rowScanner) (*model.Technician, error) {
	var (
		t    model.Technician
		lead sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash, &t.IsTeamLead, &t.IsAdmin, &t.IsActive, &lead, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.TeamLeadID = idPtr(lead)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// emailTaken reports whether another technician already uses email,
// compared without regard to case.
func (r *TechnicianRepo) emailTaken(ctx context.Context, email string, exceptID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM technicians WHERE LOWER(email)=? AND id<>?",
		utils.NormalizeEmail(email), exceptID).Scan(&n)
	return n > 0, err
}

// Create inserts a technician and fills its ID. The password is hashed
// with the given bcrypt cost; an empty password leaves the account
// without a login until one is set.
func (r *TechnicianRepo) Create(ctx context.Context, t *model.Technician, password string, cost int) error {
	t.Email = utils.NormalizeEmail(t.Email)
	t.Name = strings.TrimSpace(t.Name)
	taken, err := r.emailTaken(ctx, t.Email, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailExists
	}
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return err
		}
		t.PasswordHash = hash
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = utc(t.CreatedAt)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO technicians (name,email,password_hash,is_team_lead,is_admin,is_active,team_lead_id,created_at) VALUES (?,?,?,?,?,?,?,?)",
		t.Name, t.Email, t.PasswordHash, t.IsTeamLead, t.IsAdmin, t.IsActive, nullID(t.TeamLeadID), t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a technician by id.
func (r *TechnicianRepo) GetByID(ctx context.Context, id uint64) (*model.Technician, error) {
	t, err := scanTechnician(r.DB.QueryRowContext(ctx,
		"SELECT "+technicianColumns+" FROM technicians WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTechnicianNotFound
	}
	return t, err
}

// GetByEmail fetches a technician by email, ignoring case.
func (r *TechnicianRepo) GetByEmail(ctx context.Context, email string) (*model.Technician, error) {
	t, err := scanTechnician(r.DB.QueryRowContext(ctx,
		"SELECT "+technicianColumns+" FROM technicians WHERE LOWER(email)=? ORDER BY id LIMIT 1",
		utils.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTechnicianNotFound
	}
	return t, err
}

// List returns every technician ordered by name.
func (r *TechnicianRepo) List(ctx context.Context) ([]*model.Technician, error) {
	return r.query(ctx, "SELECT "+technicianColumns+" FROM technicians ORDER BY name, id")
}

// ListActive returns active technicians, limited to the crew of
// teamLeadID when it is non-nil.
func (r *TechnicianRepo) ListActive(ctx context.Context, teamLeadID *uint64) ([]*model.Technician, error) {
	if teamLeadID == nil {
		return r.query(ctx, "SELECT "+technicianColumns+" FROM technicians WHERE is_active=? ORDER BY name, id", true)
	}
	return r.query(ctx,
		"SELECT "+technicianColumns+" FROM technicians WHERE is_active=? AND team_lead_id=? ORDER BY name, id",
		true, *teamLeadID)
}

func (r *TechnicianRepo) query(ctx context.Context, q string, args ...any) ([]*model.Technician, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Technician
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update saves name, email, flags and team lead of an existing
// technician. The password is left alone.
func (r *TechnicianRepo) Update(ctx context.Context, t *model.Technician) error {
	t.Email = utils.NormalizeEmail(t.Email)
	t.Name = strings.TrimSpace(t.Name)
	taken, err := r.emailTaken(ctx, t.Email, t.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailExists
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE technicians SET name=?, email=?, is_team_lead=?, is_admin=?, is_active=?, team_lead_id=? WHERE id=?",
		t.Name, t.Email, t.IsTeamLead, t.IsAdmin, t.IsActive, nullID(t.TeamLeadID), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// mysql reports zero affected rows when nothing changed
		if _, err := r.GetByID(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// SetPassword replaces the stored hash with a hash of password.
func (r *TechnicianRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE technicians SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTechnicianNotFound
	}
	return nil
}

// Delete removes a technician without task or rack-state history. Crew
// members are detached and the technician's tokens removed in the same
// transaction. Technicians with history are rejected with
// ErrTechnicianHasHistory; deactivate them instead.
func (r *TechnicianRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM technicians WHERE id=?", id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrTechnicianNotFound
		}
		var history int
		if err := tx.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM technician_tasks WHERE technician_id=? OR source_id=?)
			      + (SELECT COUNT(*) FROM rack_states WHERE created_by=?)`,
			id, id, id).Scan(&history); err != nil {
			return err
		}
		if history > 0 {
			return ErrTechnicianHasHistory
		}
		if _, err := tx.ExecContext(ctx, "UPDATE technicians SET team_lead_id=NULL WHERE team_lead_id=?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id=?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM technicians WHERE id=?", id)
		return err
	})
}
