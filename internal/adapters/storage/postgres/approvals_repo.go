package postgres

import (
	"context"
	"database/sql"
	"time"

	"school-admin/internal/domain/approvals"
	"school-admin/internal/domain/workflow"
)

// ApprovalsRepo persiste role grants (usuarios_roles) y vinculaciones
// (vinculaciones). Resolver y reabrir son un único UPDATE condicionado
// al estado actual: la atomicidad del compare-and-set la da la fila,
// no una lectura previa.
type ApprovalsRepo struct {
	db *sql.DB
}

func NewApprovalsRepo(db *sql.DB) *ApprovalsRepo {
	return &ApprovalsRepo{db: db}
}

// -------------------------
// Role grants
// -------------------------

const roleGrantCols = `
	usuario_id, rol_id, estado, aprobador_id, resuelto_en, comentario,
	creado_en, actualizado_en
`

func (r *ApprovalsRepo) CreateRoleGrant(ctx context.Context, g approvals.RoleGrant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usuarios_roles (`+roleGrantCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.UserID,
		g.RoleID,
		string(g.Status),
		toNullString(deref(g.ApproverID)),
		toNullTime(g.ResolvedAt),
		toNullString(g.Comment),
		g.CreatedAt,
		g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return workflow.ErrInvalidState
	}
	return err
}

func (r *ApprovalsRepo) GetRoleGrant(ctx context.Context, userID, roleID string) (approvals.RoleGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+roleGrantCols+`
		FROM usuarios_roles
		WHERE usuario_id = $1 AND rol_id = $2
	`, userID, roleID)
	return scanRoleGrant(row)
}

func (r *ApprovalsRepo) ResolveRoleGrant(ctx context.Context, userID, roleID string, t workflow.Ticket) (approvals.RoleGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE usuarios_roles
		SET estado = $3, aprobador_id = $4, resuelto_en = $5,
		    comentario = $6, actualizado_en = $5
		WHERE usuario_id = $1 AND rol_id = $2 AND estado = $7
		RETURNING `+roleGrantCols+`
	`,
		userID,
		roleID,
		string(t.Status),
		toNullString(deref(t.ApproverID)),
		toNullTime(t.ResolvedAt),
		toNullString(t.Comment),
		string(workflow.StatusPending),
	)

	g, err := scanRoleGrant(row)
	if err == workflow.ErrNotFound {
		return approvals.RoleGrant{}, r.roleGrantMissOrRaced(ctx, userID, roleID)
	}
	return g, err
}

func (r *ApprovalsRepo) ReopenRoleGrant(ctx context.Context, userID, roleID string, at time.Time) (approvals.RoleGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE usuarios_roles
		SET estado = $3, aprobador_id = NULL, resuelto_en = NULL,
		    comentario = NULL, actualizado_en = $4
		WHERE usuario_id = $1 AND rol_id = $2 AND estado = $5
		RETURNING `+roleGrantCols+`
	`,
		userID,
		roleID,
		string(workflow.StatusPending),
		at,
		string(workflow.StatusRejected),
	)

	g, err := scanRoleGrant(row)
	if err == workflow.ErrNotFound {
		return approvals.RoleGrant{}, r.roleGrantMissOrRaced(ctx, userID, roleID)
	}
	return g, err
}

// roleGrantMissOrRaced distingue "no existe" de "existe pero perdió el
// compare-and-set".
func (r *ApprovalsRepo) roleGrantMissOrRaced(ctx context.Context, userID, roleID string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM usuarios_roles WHERE usuario_id = $1 AND rol_id = $2
		)
	`, userID, roleID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return workflow.ErrInvalidState
	}
	return workflow.ErrNotFound
}

func (r *ApprovalsRepo) ListPendingRoleGrants(ctx context.Context) ([]approvals.RoleGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roleGrantCols+`
		FROM usuarios_roles
		WHERE estado = $1
		ORDER BY creado_en ASC
	`, string(workflow.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]approvals.RoleGrant, 0)
	for rows.Next() {
		g, err := scanRoleGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *ApprovalsRepo) ListApprovedRoleGrants(ctx context.Context, userID string) ([]approvals.RoleGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roleGrantCols+`
		FROM usuarios_roles
		WHERE usuario_id = $1 AND estado = $2
	`, userID, string(workflow.StatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]approvals.RoleGrant, 0)
	for rows.Next() {
		g, err := scanRoleGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// -------------------------
// Guardian links
// -------------------------

const linkCols = `
	padre_id, estudiante_id, es_representante, estado, aprobador_id,
	resuelto_en, comentario, creado_en, actualizado_en
`

func (r *ApprovalsRepo) CreateLink(ctx context.Context, l approvals.GuardianLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vinculaciones (`+linkCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		l.ParentID,
		l.StudentID,
		l.IsRepresentative,
		string(l.Status),
		toNullString(deref(l.ApproverID)),
		toNullTime(l.ResolvedAt),
		toNullString(l.Comment),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return workflow.ErrInvalidState
	}
	return err
}

func (r *ApprovalsRepo) GetLink(ctx context.Context, parentID, studentID string) (approvals.GuardianLink, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+linkCols+`
		FROM vinculaciones
		WHERE padre_id = $1 AND estudiante_id = $2
	`, parentID, studentID)
	return scanLink(row)
}

func (r *ApprovalsRepo) ResolveLink(ctx context.Context, parentID, studentID string, t workflow.Ticket) (approvals.GuardianLink, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE vinculaciones
		SET estado = $3, aprobador_id = $4, resuelto_en = $5,
		    comentario = $6, actualizado_en = $5
		WHERE padre_id = $1 AND estudiante_id = $2 AND estado = $7
		RETURNING `+linkCols+`
	`,
		parentID,
		studentID,
		string(t.Status),
		toNullString(deref(t.ApproverID)),
		toNullTime(t.ResolvedAt),
		toNullString(t.Comment),
		string(workflow.StatusPending),
	)

	l, err := scanLink(row)
	if err == workflow.ErrNotFound {
		return approvals.GuardianLink{}, r.linkMissOrRaced(ctx, parentID, studentID)
	}
	return l, err
}

func (r *ApprovalsRepo) ReopenLink(ctx context.Context, parentID, studentID string, isRepresentative bool, at time.Time) (approvals.GuardianLink, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE vinculaciones
		SET estado = $3, es_representante = $4, aprobador_id = NULL,
		    resuelto_en = NULL, comentario = NULL, actualizado_en = $5
		WHERE padre_id = $1 AND estudiante_id = $2 AND estado = $6
		RETURNING `+linkCols+`
	`,
		parentID,
		studentID,
		string(workflow.StatusPending),
		isRepresentative,
		at,
		string(workflow.StatusRejected),
	)

	l, err := scanLink(row)
	if err == workflow.ErrNotFound {
		return approvals.GuardianLink{}, r.linkMissOrRaced(ctx, parentID, studentID)
	}
	return l, err
}

func (r *ApprovalsRepo) linkMissOrRaced(ctx context.Context, parentID, studentID string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vinculaciones WHERE padre_id = $1 AND estudiante_id = $2
		)
	`, parentID, studentID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return workflow.ErrInvalidState
	}
	return workflow.ErrNotFound
}

func (r *ApprovalsRepo) ListPendingLinks(ctx context.Context) ([]approvals.GuardianLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+linkCols+`
		FROM vinculaciones
		WHERE estado = $1
		ORDER BY creado_en ASC
	`, string(workflow.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]approvals.GuardianLink, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ApprovalsRepo) ListLinksByParent(ctx context.Context, parentID string) ([]approvals.GuardianLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+linkCols+`
		FROM vinculaciones
		WHERE padre_id = $1
		ORDER BY creado_en ASC
	`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]approvals.GuardianLink, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// -------------------------
// scan helpers
// -------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoleGrant(row rowScanner) (approvals.RoleGrant, error) {
	var g approvals.RoleGrant
	var estado string
	var aprobador sql.NullString
	var resuelto sql.NullTime
	var comentario sql.NullString

	err := row.Scan(
		&g.UserID,
		&g.RoleID,
		&estado,
		&aprobador,
		&resuelto,
		&comentario,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return approvals.RoleGrant{}, workflow.ErrNotFound
	}
	if err != nil {
		return approvals.RoleGrant{}, err
	}

	g.Status = workflow.Status(estado)
	if aprobador.Valid {
		v := aprobador.String
		g.ApproverID = &v
	}
	g.ResolvedAt = fromNullTime(resuelto)
	g.Comment = comentario.String
	return g, nil
}

func scanLink(row rowScanner) (approvals.GuardianLink, error) {
	var l approvals.GuardianLink
	var estado string
	var aprobador sql.NullString
	var resuelto sql.NullTime
	var comentario sql.NullString

	err := row.Scan(
		&l.ParentID,
		&l.StudentID,
		&l.IsRepresentative,
		&estado,
		&aprobador,
		&resuelto,
		&comentario,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return approvals.GuardianLink{}, workflow.ErrNotFound
	}
	if err != nil {
		return approvals.GuardianLink{}, err
	}

	l.Status = workflow.Status(estado)
	if aprobador.Valid {
		v := aprobador.String
		l.ApproverID = &v
	}
	l.ResolvedAt = fromNullTime(resuelto)
	l.Comment = comentario.String
	return l, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
