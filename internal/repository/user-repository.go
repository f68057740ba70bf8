package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yolda/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned when a lookup resolves no user.
var ErrUserNotFound = fmt.Errorf("user not found")

type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, telegram_id, telegram_username, first_name, last_name,
	   phone_number, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.TelegramID, &user.TelegramUsername, &user.FirstName,
		&user.LastName, &user.PhoneNumber, &user.Role, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser registers a new user and returns the stored record.
func (r *UserRepository) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	userID := uuid.New().String()

	query := `
		INSERT INTO users (
			id, telegram_id, telegram_username, first_name, last_name,
			phone_number, role, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()

	_, err := r.db.ExecContext(ctx, query,
		userID, req.TelegramID, req.TelegramUsername, req.FirstName, req.LastName,
		req.PhoneNumber, req.Role, true, now, now,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("User created",
		zap.String("user_id", userID),
		zap.Int64("telegram_id", req.TelegramID),
		zap.String("role", req.Role))

	return r.GetUserByID(ctx, userID)
}

// GetUserByID retrieves a user by their database ID (UUID).
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Failed to get user by ID", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByTelegramID retrieves a user by their Telegram ID.
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Failed to get user by Telegram ID", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile updates the editable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, firstName, lastName, phoneNumber string) error {
	query := `
		UPDATE users
		SET first_name = ?, last_name = ?, phone_number = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, firstName, lastName, phoneNumber, userID)
	if err != nil {
		r.logger.Error("Failed to update profile", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole changes a user's role.
func (r *UserRepository) SetRole(ctx context.Context, userID, role string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, userID)
	if err != nil {
		r.logger.Error("Failed to set role", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to set role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListActiveDrivers returns all active drivers, used for order fan-out.
func (r *UserRepository) ListActiveDrivers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? AND is_active = TRUE ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, domain.RoleDriver)
	if err != nil {
		r.logger.Error("Failed to list drivers", zap.Error(err))
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*domain.User
	for rows.Next() {
		user := &domain.User{}
		err := rows.Scan(
			&user.ID, &user.TelegramID, &user.TelegramUsername, &user.FirstName,
			&user.LastName, &user.PhoneNumber, &user.Role, &user.IsActive,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, user)
	}
	return drivers, rows.Err()
}

// CountByRole returns user totals for the statistics panel.
func (r *UserRepository) CountByRole(ctx context.Context) (total, drivers, passengers int64, err error) {
	query := `
		SELECT COUNT(*),
			   COUNT(CASE WHEN role = 'DRIVER' THEN 1 END),
			   COUNT(CASE WHEN role = 'PASSENGER' THEN 1 END)
		FROM users`

	err = r.db.QueryRowContext(ctx, query).Scan(&total, &drivers, &passengers)
	if err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, drivers, passengers, nil
}
