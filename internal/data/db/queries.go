package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the application's SQL against a connection or transaction.
type Queries struct {
	db DBTX
}

// New creates Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const classSessionColumns = `id, teacher_id, student_id, status, started_at, finished_at`

func scanClassSession(row interface{ Scan(...any) error }) (ClassSession, error) {
	var s ClassSession
	err := row.Scan(&s.ID, &s.TeacherID, &s.StudentID, &s.Status, &s.StartedAt, &s.FinishedAt)
	return s, err
}

func (q *Queries) listClassSessions(ctx context.Context, query string, args ...any) ([]ClassSession, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ClassSession
	for rows.Next() {
		s, err := scanClassSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// GetClassSession returns one session by id.
func (q *Queries) GetClassSession(ctx context.Context, id string) (ClassSession, error) {
	return scanClassSession(q.db.QueryRowContext(ctx,
		`SELECT `+classSessionColumns+` FROM class_sessions WHERE id = ?`, id))
}

// GetActiveClassSession returns the teacher's in-progress session.
func (q *Queries) GetActiveClassSession(ctx context.Context, teacherID string) (ClassSession, error) {
	return scanClassSession(q.db.QueryRowContext(ctx,
		`SELECT `+classSessionColumns+` FROM class_sessions
		 WHERE teacher_id = ? AND status = 'in_progress'
		 ORDER BY started_at DESC LIMIT 1`, teacherID))
}

// InsertClassSession inserts a session row.
func (q *Queries) InsertClassSession(ctx context.Context, s ClassSession) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO class_sessions (`+classSessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.TeacherID, s.StudentID, s.Status, s.StartedAt, s.FinishedAt)
	return err
}

// UpdateClassSessionStatusParams holds arguments to UpdateClassSessionStatus.
type UpdateClassSessionStatusParams struct {
	ID         string
	Status     string
	FinishedAt sql.NullInt64
}

// UpdateClassSessionStatus sets status and finish time, returning rows affected.
func (q *Queries) UpdateClassSessionStatus(ctx context.Context, arg UpdateClassSessionStatusParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE class_sessions SET status = ?, finished_at = ? WHERE id = ?`,
		arg.Status, arg.FinishedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListClassSessionsByStatus returns a teacher's sessions in status, most
// recently finished first.
func (q *Queries) ListClassSessionsByStatus(ctx context.Context, teacherID, status string) ([]ClassSession, error) {
	return q.listClassSessions(ctx,
		`SELECT `+classSessionColumns+` FROM class_sessions
		 WHERE teacher_id = ? AND status = ?
		 ORDER BY COALESCE(finished_at, started_at) DESC, id`, teacherID, status)
}

// ListActiveClassSessions returns all in-progress sessions.
func (q *Queries) ListActiveClassSessions(ctx context.Context) ([]ClassSession, error) {
	return q.listClassSessions(ctx,
		`SELECT `+classSessionColumns+` FROM class_sessions
		 WHERE status = 'in_progress' ORDER BY teacher_id`)
}

const mistakeColumns = `id, session_id, owner_id, original_text, corrected_text, explanation, categories, is_correct, source, created_at`

// InsertMistake inserts a mistake row.
func (q *Queries) InsertMistake(ctx context.Context, m Mistake) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO mistakes (`+mistakeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.OwnerID, m.OriginalText, m.CorrectedText, m.Explanation,
		m.Categories, m.IsCorrect, m.Source, m.CreatedAt)
	return err
}

// DeleteMistake deletes a mistake row, returning rows affected.
func (q *Queries) DeleteMistake(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM mistakes WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMistakesBySession returns a session's mistakes, newest first.
func (q *Queries) ListMistakesBySession(ctx context.Context, sessionID string) ([]Mistake, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+mistakeColumns+` FROM mistakes WHERE session_id = ? ORDER BY created_at DESC, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Mistake
	for rows.Next() {
		var m Mistake
		if err := rows.Scan(&m.ID, &m.SessionID, &m.OwnerID, &m.OriginalText, &m.CorrectedText,
			&m.Explanation, &m.Categories, &m.IsCorrect, &m.Source, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
