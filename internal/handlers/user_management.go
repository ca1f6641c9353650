package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
)

// UserManagementHandler lets the MLGOO list users, change roles, bind BLGU
// users to a barangay and delete accounts.
type UserManagementHandler struct {
	db database.Service
}

func NewUserManagementHandler(db database.Service) *UserManagementHandler {
	return &UserManagementHandler{db: db}
}

const userColumns = `id, email, name, role, barangay_id::text, created_at::text, updated_at::text`

func scanUser(row interface{ Scan(...any) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.BarangayID, &u.CreatedAt, &u.UpdatedAt)
}

// List returns users. Only super_admin sees other super_admin accounts.
// Optional ?role= filter.
func (h *UserManagementHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()
	currentRole := ctxkeys.GetUserRole(r.Context())

	where := "WHERE 1=1"
	args := []interface{}{}
	if currentRole != ctxkeys.RoleSuperAdmin {
		where += " AND role <> 'super_admin'"
	}
	if role := r.URL.Query().Get("role"); role != "" {
		args = append(args, role)
		where += " AND role = $1"
	}

	rows, err := pool.Query(ctx, `SELECT `+userColumns+` FROM users `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		zap.L().Error("failed to list users", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			zap.L().Warn("failed to scan user row", zap.Error(err))
			continue
		}
		users = append(users, u)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": users})
}

// UpdateRole changes a user's role. Only super_admin may grant or revoke
// super_admin.
func (h *UserManagementHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	currentUserID := ctxkeys.GetUserID(r.Context())
	currentRole := ctxkeys.GetUserRole(r.Context())

	if targetID == currentUserID {
		JSONError(w, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	var req models.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var targetRole string
	if err := pool.QueryRow(ctx, "SELECT role FROM users WHERE id = $1", targetID).Scan(&targetRole); err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}
	if currentRole != ctxkeys.RoleSuperAdmin &&
		(req.Role == ctxkeys.RoleSuperAdmin || targetRole == ctxkeys.RoleSuperAdmin) {
		JSONError(w, http.StatusForbidden, "Only super_admin can manage super_admin accounts")
		return
	}

	var user models.User
	err := scanUser(pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, req.Role, targetID), &user)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	go logActivity(pool, currentUserID, "updated_role", "user", targetID, map[string]interface{}{
		"oldRole": targetRole,
		"newRole": req.Role,
		"email":   user.Email,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    user,
		"message": "Role updated successfully",
	})
}

// AssignBarangay binds a user to a barangay. Only blgu_user accounts carry
// a barangay; null clears the binding.
func (h *UserManagementHandler) AssignBarangay(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	currentUserID := ctxkeys.GetUserID(r.Context())

	var req models.AssignBarangayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var targetRole string
	if err := pool.QueryRow(ctx, "SELECT role FROM users WHERE id = $1", targetID).Scan(&targetRole); err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.BarangayID != nil && targetRole != ctxkeys.RoleBLGU {
		validationFailed(w, map[string]string{"barangayId": "Only BLGU users can be assigned to a barangay"})
		return
	}

	var user models.User
	err := scanUser(pool.QueryRow(ctx, `
		UPDATE users SET barangay_id = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+userColumns, req.BarangayID, targetID), &user)
	if err != nil {
		if isForeignKeyError(err) {
			validationFailed(w, map[string]string{"barangayId": "Barangay not found"})
			return
		}
		zap.L().Error("failed to assign barangay", zap.String("user_id", targetID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to assign barangay")
		return
	}

	go logActivity(pool, currentUserID, "assigned_barangay", "user", targetID, map[string]interface{}{
		"barangayId": req.BarangayID,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    user,
		"message": "Barangay assignment updated",
	})
}

// Delete removes a user. super_admin accounts can only be removed by a
// super_admin.
func (h *UserManagementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	currentUserID := ctxkeys.GetUserID(r.Context())
	currentRole := ctxkeys.GetUserRole(r.Context())

	if targetID == currentUserID {
		JSONError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var email, targetRole string
	err := pool.QueryRow(ctx, `SELECT email, role FROM users WHERE id = $1`, targetID).Scan(&email, &targetRole)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	if currentRole != ctxkeys.RoleSuperAdmin && targetRole == ctxkeys.RoleSuperAdmin {
		JSONError(w, http.StatusForbidden, "Cannot delete super_admin users")
		return
	}

	tag, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, targetID)
	if err != nil {
		zap.L().Error("failed to delete user", zap.String("user_id", targetID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	go logActivity(pool, currentUserID, "deleted", "user", targetID, map[string]interface{}{
		"email": email,
	})

	JSON(w, http.StatusOK, map[string]interface{}{"message": "User deleted successfully"})
}
