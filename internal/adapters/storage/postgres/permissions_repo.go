package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"school-admin/internal/domain/permissions"
	"school-admin/internal/domain/workflow"
)

// PermissionsRepo persiste permisos de acceso (permisos). codigo_qr
// lleva una restricción UNIQUE; la violación se reporta como
// workflow.ErrDuplicateToken para que el servicio reintente con otro
// token. Resolve y Transition son UPDATEs condicionados al estado.
type PermissionsRepo struct {
	db *sql.DB
}

func NewPermissionsRepo(db *sql.DB) *PermissionsRepo {
	return &PermissionsRepo{db: db}
}

const permissionCols = `
	id, padre_id, curso_id, estudiante_id, tipo, inicio_ventana,
	fin_ventana, codigo_qr, estado, aprobador_id, resuelto_en,
	comentario, creado_en, actualizado_en
`

func (r *PermissionsRepo) Create(ctx context.Context, p permissions.Permission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO permisos (`+permissionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		p.ID,
		p.ParentID,
		p.CourseID,
		toNullString(p.StudentID),
		string(p.Kind),
		p.WindowStart,
		p.WindowEnd,
		toNullString(p.CredentialToken),
		string(p.Status),
		toNullString(deref(p.ApproverID)),
		toNullTime(p.ResolvedAt),
		toNullString(p.Comment),
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PermissionsRepo) GetByID(ctx context.Context, id string) (permissions.Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return permissions.Permission{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+permissionCols+`
		FROM permisos
		WHERE id = $1
	`, id)
	return scanPermission(row)
}

func (r *PermissionsRepo) GetByToken(ctx context.Context, token string) (permissions.Permission, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return permissions.Permission{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+permissionCols+`
		FROM permisos
		WHERE codigo_qr = $1
	`, token)
	return scanPermission(row)
}

func (r *PermissionsRepo) Resolve(ctx context.Context, id string, t workflow.Ticket, token string) (permissions.Permission, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE permisos
		SET estado = $2, aprobador_id = $3, resuelto_en = $4,
		    comentario = $5, codigo_qr = $6, actualizado_en = $4
		WHERE id = $1 AND estado = $7
		RETURNING `+permissionCols+`
	`,
		id,
		string(t.Status),
		toNullString(deref(t.ApproverID)),
		toNullTime(t.ResolvedAt),
		toNullString(t.Comment),
		toNullString(token),
		string(workflow.StatusPending),
	)

	p, err := scanPermission(row)
	if err == nil {
		return p, nil
	}
	if isUniqueViolation(err) {
		return permissions.Permission{}, workflow.ErrDuplicateToken
	}
	if err == workflow.ErrNotFound {
		return permissions.Permission{}, r.missOrRaced(ctx, id)
	}
	return permissions.Permission{}, err
}

func (r *PermissionsRepo) Transition(ctx context.Context, id string, from, to workflow.Status, at time.Time) (permissions.Permission, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE permisos
		SET estado = $2, actualizado_en = $3
		WHERE id = $1 AND estado = $4
		RETURNING `+permissionCols+`
	`,
		id,
		string(to),
		at,
		string(from),
	)

	p, err := scanPermission(row)
	if err == workflow.ErrNotFound {
		return permissions.Permission{}, r.missOrRaced(ctx, id)
	}
	return p, err
}

func (r *PermissionsRepo) missOrRaced(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM permisos WHERE id = $1)
	`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return workflow.ErrInvalidState
	}
	return workflow.ErrNotFound
}

func (r *PermissionsRepo) ListPending(ctx context.Context) ([]permissions.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+permissionCols+`
		FROM permisos
		WHERE estado = $1
		ORDER BY creado_en ASC
	`, string(workflow.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (r *PermissionsRepo) ListPendingByCourses(ctx context.Context, courseIDs []string) ([]permissions.Permission, error) {
	if len(courseIDs) == 0 {
		return []permissions.Permission{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+permissionCols+`
		FROM permisos
		WHERE estado = $1 AND curso_id = ANY($2)
		ORDER BY creado_en ASC
	`, string(workflow.StatusPending), courseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (r *PermissionsRepo) ListApprovedEndingBefore(ctx context.Context, cutoff time.Time) ([]permissions.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+permissionCols+`
		FROM permisos
		WHERE estado = $1 AND fin_ventana < $2
	`, string(workflow.StatusApproved), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]permissions.Permission, error) {
	out := make([]permissions.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPermission(row rowScanner) (permissions.Permission, error) {
	var p permissions.Permission
	var estudiante, token, aprobador, comentario sql.NullString
	var estado, tipo string
	var resuelto sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.ParentID,
		&p.CourseID,
		&estudiante,
		&tipo,
		&p.WindowStart,
		&p.WindowEnd,
		&token,
		&estado,
		&aprobador,
		&resuelto,
		&comentario,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return permissions.Permission{}, workflow.ErrNotFound
	}
	if err != nil {
		return permissions.Permission{}, err
	}

	p.StudentID = estudiante.String
	p.Kind = permissions.Kind(tipo)
	p.CredentialToken = token.String
	p.Status = workflow.Status(estado)
	if aprobador.Valid {
		v := aprobador.String
		p.ApproverID = &v
	}
	p.ResolvedAt = fromNullTime(resuelto)
	p.Comment = comentario.String
	return p, nil
}
