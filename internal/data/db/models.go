package db

import "database/sql"

// ClassSession is a row of class_sessions.
type ClassSession struct {
	ID         string
	TeacherID  string
	StudentID  string
	Status     string
	StartedAt  int64
	FinishedAt sql.NullInt64
}

// Mistake is a row of mistakes. Categories holds a JSON array.
type Mistake struct {
	ID            string
	SessionID     string
	OwnerID       string
	OriginalText  string
	CorrectedText string
	Explanation   string
	Categories    string
	IsCorrect     int64
	Source        string
	CreatedAt     int64
}
