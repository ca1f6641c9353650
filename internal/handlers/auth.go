package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/middleware"
	"github.com/generyand/sinag-sub010/internal/models"
)

// tokenTTL is how long issued JWTs stay valid.
const tokenTTL = 7 * 24 * time.Hour

// AuthHandler manages user registration, login, and profile retrieval.
type AuthHandler struct {
	db        database.Service
	jwtSecret []byte
}

// NewAuthHandler creates an AuthHandler with the given database and JWT signing key.
func NewAuthHandler(db database.Service, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

// Register creates a new account and returns a JWT.
// New users always start as blgu_user without a barangay; the MLGOO assigns
// both through user management.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		zap.L().Error("failed to hash password", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var user models.User
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, name, role, barangay_id::text, created_at::text, updated_at::text
	`, req.Email, string(hashedPassword), req.Name, ctxkeys.RoleBLGU,
	).Scan(
		&user.ID, &user.Email, &user.Name, &user.Role,
		&user.BarangayID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		zap.L().Error("failed to create user", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		zap.L().Error("failed to generate token", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Account created but login failed")
		return
	}

	go logActivity(pool, user.ID, "registered", "user", user.ID, nil)

	JSON(w, http.StatusCreated, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Login authenticates a user with email + password and returns a JWT token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
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

	var user models.User
	err := pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, barangay_id::text,
		       created_at::text, updated_at::text
		FROM users WHERE email = $1
	`, req.Email,
	).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role,
		&user.BarangayID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		// Same message for unknown email and wrong password.
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		zap.L().Error("failed to generate token", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	JSON(w, http.StatusOK, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// GetMe returns the profile of the currently authenticated user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := ctxkeys.GetUserID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var user models.User
	var barangayName *string
	err := pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.barangay_id::text, b.name,
		       u.created_at::text, u.updated_at::text
		FROM users u
		LEFT JOIN barangays b ON b.id = u.barangay_id
		WHERE u.id = $1
	`, userID,
	).Scan(
		&user.ID, &user.Email, &user.Name, &user.Role,
		&user.BarangayID, &barangayName, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	type MeResponse struct {
		models.User
		BarangayName *string `json:"barangayName,omitempty"`
	}

	JSON(w, http.StatusOK, MeResponse{User: user, BarangayName: barangayName})
}

func (h *AuthHandler) generateToken(userID, role string) (string, error) {
	return middleware.IssueToken(h.jwtSecret, userID, role, tokenTTL, time.Now())
}

// EnsureSuperAdmin creates a super_admin account for email unless one with
// that email already exists. Used to bootstrap a fresh database.
func EnsureSuperAdmin(ctx context.Context, db database.Service, email, password string) (bool, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	tag, err := db.GetPool().Exec(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, 'Administrator', $3)
		ON CONFLICT (email) DO NOTHING
	`, email, string(hashed), ctxkeys.RoleSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("create super admin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
