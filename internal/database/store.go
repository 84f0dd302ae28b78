package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/getout/app/internal/errors"
	"github.com/getout/app/internal/logger"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateMessage inserts message.Body and fills in the generated ID and timestamps.
	CreateMessage(ctx context.Context, message *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)

	// ListMessages returns all messages, oldest first.
	ListMessages(ctx context.Context) ([]Message, error)

	// UpdateMessageBody replaces the body of an existing message.
	UpdateMessageBody(ctx context.Context, id uuid.UUID, body string) error

	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, id uuid.UUID) error

	// CreateUser inserts a user and returns it with its generated ID.
	CreateUser(ctx context.Context) (*User, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]User, error)

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) CreateMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return apperrors.NewValidationError("cannot save nil message", nil)
	}

	var id uuid.UUID
	err := s.db.QueryRowxContext(ctx, `INSERT INTO messages (body) VALUES (?) RETURNING id`, message.Body).Scan(&id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "error", err)
		return apperrors.NewDatabaseError("failed to save message", err)
	}

	stored, err := s.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload saved message %s: %w", id, err)
	}
	*message = *stored

	s.logger.DebugContext(ctx, "Message saved", "message_id", message.ID)
	return nil
}

func (s *sqlxStore) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	var message Message
	err := s.db.GetContext(ctx, &message,
		`SELECT id, body, created_at, updated_at FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("message %s not found", id))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching message", "message_id", id, "error", err)
		return nil, apperrors.NewDatabaseError("failed to fetch message", err)
	}
	return &message, nil
}

func (s *sqlxStore) ListMessages(ctx context.Context) ([]Message, error) {
	messages := []Message{}
	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, body, created_at, updated_at FROM messages ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing messages", "error", err)
		return nil, apperrors.NewDatabaseError("failed to list messages", err)
	}
	return messages, nil
}

// UpdateMessageBody leaves updated_at alone: the column is only written at insert.
func (s *sqlxStore) UpdateMessageBody(ctx context.Context, id uuid.UUID, body string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET body = ? WHERE id = ?`, body, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating message", "message_id", id, "error", err)
		return apperrors.NewDatabaseError("failed to update message", err)
	}
	return s.expectOneRow(result, "message", id)
}

func (s *sqlxStore) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting message", "message_id", id, "error", err)
		return apperrors.NewDatabaseError("failed to delete message", err)
	}
	return s.expectOneRow(result, "message", id)
}

func (s *sqlxStore) CreateUser(ctx context.Context) (*User, error) {
	var user User
	if err := s.db.GetContext(ctx, &user, `INSERT INTO users DEFAULT VALUES RETURNING id`); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "error", err)
		return nil, apperrors.NewDatabaseError("failed to save user", err)
	}

	s.logger.DebugContext(ctx, "User saved", "user_id", user.ID)
	return &user, nil
}

func (s *sqlxStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT id FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching user", "user_id", id, "error", err)
		return nil, apperrors.NewDatabaseError("failed to fetch user", err)
	}
	return &user, nil
}

func (s *sqlxStore) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.SelectContext(ctx, &users, `SELECT id FROM users ORDER BY rowid ASC`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing users", "error", err)
		return nil, apperrors.NewDatabaseError("failed to list users", err)
	}
	return users, nil
}

func (s *sqlxStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting user", "user_id", id, "error", err)
		return apperrors.NewDatabaseError("failed to delete user", err)
	}
	return s.expectOneRow(result, "user", id)
}

// RunSQLMaintenance refreshes planner statistics and executes VACUUM.
// VACUUM cannot run inside a transaction, so both statements go straight to the pool.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.ErrorContext(ctx, "PRAGMA optimize failed", "error", err)
		return apperrors.NewDatabaseError("failed to optimize database", err)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
			return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
		}
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return apperrors.NewDatabaseError("failed to execute VACUUM", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func (s *sqlxStore) expectOneRow(result sql.Result, entity string, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to read affected rows for %s", entity), err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", entity, id))
	}
	return nil
}
