package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository resolves the permissions granted to staff through their roles.
type RoleRepository interface {
	PermissionsForStaff(ctx context.Context, staffID string) ([]string, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository instantiates the repository.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) PermissionsForStaff(ctx context.Context, staffID string) ([]string, error) {
	const query = `
        SELECT DISTINCT p.name
        FROM staff_roles sr
        JOIN role_permissions rp ON rp.role_id = sr.role_id
        JOIN permissions p ON p.id = rp.permission_id
        WHERE sr.staff_id=$1
        ORDER BY p.name`
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	return result, rows.Err()
}
