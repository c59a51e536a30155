// Package directory answers enrollment and course-staffing lookups for
// the attempt engine. Course and user management proper live in other
// services; this is the read side the engine consumes.
package directory

import (
	"context"
	"database/sql"
	"errors"
)

type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory { return &SQLDirectory{db: db} }

func (d *SQLDirectory) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE course_id=$1 AND student_id=$2`,
		courseID, studentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *SQLDirectory) IsTeacherOfCourse(ctx context.Context, courseID, userID string) (bool, error) {
	var exists int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM course_teachers WHERE course_id=$1 AND teacher_id=$2`,
		courseID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
