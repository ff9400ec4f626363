// Package sqlstore implements store.Store on database/sql. The queries are
// portable between MySQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"olympiad-engine/models"
	"olympiad-engine/store"
)

// Store persists engine records in a SQL database.
type Store struct {
	db *sql.DB
}

// New returns a Store over an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var sqliteErr *msqlite.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1452 || mysqlErr.Number == 1451
	}
	var sqliteErr *msqlite.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

const competitionColumns = `id, subject, start_at, end_at, time_limit_ms, price, question_count, pass_threshold,
	answer_key, phase, version, created_at, updated_at, results_published_at, archived_at`

func scanCompetition(row scanner) (models.Competition, error) {
	var (
		c          models.Competition
		startAt    int64
		endAt      int64
		limitMs    int64
		answerKey  string
		phase      string
		createdAt  int64
		updatedAt  int64
		publishedA sql.NullInt64
		archivedAt sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.Subject, &startAt, &endAt, &limitMs, &c.Price, &c.QuestionCount, &c.PassThreshold,
		&answerKey, &phase, &c.Version, &createdAt, &updatedAt, &publishedA, &archivedAt)
	if err != nil {
		return models.Competition{}, err
	}
	if err := json.Unmarshal([]byte(answerKey), &c.AnswerKey); err != nil {
		return models.Competition{}, errors.Wrap(err, "decode answer key")
	}
	c.StartAt = fromMillis(startAt)
	c.EndAt = fromMillis(endAt)
	c.TimeLimit = time.Duration(limitMs) * time.Millisecond
	c.Phase = models.Phase(phase)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	c.ResultsPublishedAt = fromNullMillis(publishedA)
	c.ArchivedAt = fromNullMillis(archivedAt)
	return c, nil
}

func (s *Store) CreateCompetition(ctx context.Context, c models.Competition) error {
	key, err := json.Marshal(c.AnswerKey)
	if err != nil {
		return errors.Wrap(err, "encode answer key")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO competitions (`+competitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Subject, toMillis(c.StartAt), toMillis(c.EndAt), c.TimeLimit.Milliseconds(), c.Price,
		c.QuestionCount, c.PassThreshold, string(key), string(c.Phase), c.Version,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt), toNullMillis(c.ResultsPublishedAt), toNullMillis(c.ArchivedAt))
	if err != nil {
		if isDuplicate(err) {
			return store.ErrDuplicate
		}
		return errors.Wrap(err, "insert competition")
	}
	return nil
}

func (s *Store) GetCompetition(ctx context.Context, id string) (models.Competition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = ?`, id)
	c, err := scanCompetition(row)
	if err == sql.ErrNoRows {
		return models.Competition{}, store.ErrNotFound
	}
	if err != nil {
		return models.Competition{}, errors.Wrap(err, "select competition")
	}
	return c, nil
}

func (s *Store) ListCompetitions(ctx context.Context, phases ...models.Phase) ([]models.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions`
	args := make([]any, 0, len(phases))
	if len(phases) > 0 {
		query += ` WHERE phase IN (?` + strings.Repeat(", ?", len(phases)-1) + `)`
		for _, p := range phases {
			args = append(args, string(p))
		}
	}
	query += ` ORDER BY start_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list competitions")
	}
	defer rows.Close()

	var out []models.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan competition")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate competitions")
}

func updateCompetition(ctx context.Context, q queryer, c models.Competition, expectedVersion int64) error {
	key, err := json.Marshal(c.AnswerKey)
	if err != nil {
		return errors.Wrap(err, "encode answer key")
	}
	res, err := q.ExecContext(ctx, `UPDATE competitions SET
		subject = ?, start_at = ?, end_at = ?, time_limit_ms = ?, price = ?, question_count = ?, pass_threshold = ?,
		answer_key = ?, phase = ?, version = ?, updated_at = ?, results_published_at = ?, archived_at = ?
		WHERE id = ? AND version = ?`,
		c.Subject, toMillis(c.StartAt), toMillis(c.EndAt), c.TimeLimit.Milliseconds(), c.Price, c.QuestionCount,
		c.PassThreshold, string(key), string(c.Phase), c.Version, toMillis(c.UpdatedAt),
		toNullMillis(c.ResultsPublishedAt), toNullMillis(c.ArchivedAt), c.ID, expectedVersion)
	if err != nil {
		return errors.Wrap(err, "update competition")
	}
	return checkAffected(ctx, q, res, "competitions", c.ID)
}

// checkAffected distinguishes a missing row from a version mismatch when an
// optimistic update touched nothing.
func checkAffected(ctx context.Context, q queryer, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	var one int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "probe %s", table)
	}
	return store.ErrConflict
}

func (s *Store) UpdateCompetition(ctx context.Context, c models.Competition, expectedVersion int64) error {
	return updateCompetition(ctx, s.db, c, expectedVersion)
}

func (s *Store) DeleteCompetition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM competitions WHERE id = ?`, id)
	if err != nil {
		if isForeignKey(err) {
			return store.ErrConflict
		}
		return errors.Wrap(err, "delete competition")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRegistration(ctx context.Context, r models.Registration) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO registrations (competition_id, participant_id, registered_at, eligible)
		VALUES (?, ?, ?, ?)`, r.CompetitionID, r.ParticipantID, toMillis(r.RegisteredAt), r.Eligible)
	if err != nil {
		if isDuplicate(err) {
			return store.ErrDuplicate
		}
		if isForeignKey(err) {
			return store.ErrNotFound
		}
		return errors.Wrap(err, "insert registration")
	}
	return nil
}

func scanRegistration(row scanner) (models.Registration, error) {
	var (
		r            models.Registration
		registeredAt int64
	)
	if err := row.Scan(&r.CompetitionID, &r.ParticipantID, &registeredAt, &r.Eligible); err != nil {
		return models.Registration{}, err
	}
	r.RegisteredAt = fromMillis(registeredAt)
	return r, nil
}

func (s *Store) GetRegistration(ctx context.Context, competitionID, participantID string) (models.Registration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT competition_id, participant_id, registered_at, eligible
		FROM registrations WHERE competition_id = ? AND participant_id = ?`, competitionID, participantID)
	r, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return models.Registration{}, store.ErrNotFound
	}
	if err != nil {
		return models.Registration{}, errors.Wrap(err, "select registration")
	}
	return r, nil
}

func (s *Store) SetEligible(ctx context.Context, competitionID, participantID string, eligible bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE registrations SET eligible = ?
		WHERE competition_id = ? AND participant_id = ?`, eligible, competitionID, participantID)
	if err != nil {
		return errors.Wrap(err, "update registration")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		// MySQL reports zero affected rows when the value is unchanged.
		if _, err := s.GetRegistration(ctx, competitionID, participantID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListRegistrations(ctx context.Context, competitionID string) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT competition_id, participant_id, registered_at, eligible
		FROM registrations WHERE competition_id = ? ORDER BY participant_id`, competitionID)
	if err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	defer rows.Close()

	var out []models.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan registration")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate registrations")
}

const submissionColumns = `id, competition_id, participant_id, started_at, submitted_at, answers, raw_score,
	time_taken_ms, status, disqualify_reason, version`

func encodeAnswers(answers map[int]string) (string, error) {
	keyed := make(map[string]string, len(answers))
	for q, a := range answers {
		keyed[strconv.Itoa(q)] = a
	}
	data, err := json.Marshal(keyed)
	if err != nil {
		return "", errors.Wrap(err, "encode answers")
	}
	return string(data), nil
}

func decodeAnswers(data string) (map[int]string, error) {
	var keyed map[string]string
	if err := json.Unmarshal([]byte(data), &keyed); err != nil {
		return nil, errors.Wrap(err, "decode answers")
	}
	if len(keyed) == 0 {
		return nil, nil
	}
	answers := make(map[int]string, len(keyed))
	for k, a := range keyed {
		q, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "decode answers: question %q", k)
		}
		answers[q] = a
	}
	return answers, nil
}

func scanSubmission(row scanner) (models.Submission, error) {
	var (
		sub         models.Submission
		startedAt   int64
		submittedAt sql.NullInt64
		answers     string
		takenMs     int64
		status      string
		reason      sql.NullString
	)
	err := row.Scan(&sub.ID, &sub.CompetitionID, &sub.ParticipantID, &startedAt, &submittedAt, &answers,
		&sub.RawScore, &takenMs, &status, &reason, &sub.Version)
	if err != nil {
		return models.Submission{}, err
	}
	sub.Answers, err = decodeAnswers(answers)
	if err != nil {
		return models.Submission{}, err
	}
	sub.StartedAt = fromMillis(startedAt)
	sub.SubmittedAt = fromNullMillis(submittedAt)
	sub.TimeTaken = time.Duration(takenMs) * time.Millisecond
	sub.Status = models.SubmissionStatus(status)
	sub.DisqualifyReason = reason.String
	return sub, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateSubmission(ctx context.Context, sub models.Submission) error {
	answers, err := encodeAnswers(sub.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.CompetitionID, sub.ParticipantID, toMillis(sub.StartedAt), toNullMillis(sub.SubmittedAt),
		answers, sub.RawScore, sub.TimeTaken.Milliseconds(), string(sub.Status), nullString(sub.DisqualifyReason), sub.Version)
	if err != nil {
		if isDuplicate(err) {
			return store.ErrDuplicate
		}
		if isForeignKey(err) {
			return store.ErrNotFound
		}
		return errors.Wrap(err, "insert submission")
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return models.Submission{}, store.ErrNotFound
	}
	if err != nil {
		return models.Submission{}, errors.Wrap(err, "select submission")
	}
	return sub, nil
}

func (s *Store) GetSubmissionByParticipant(ctx context.Context, competitionID, participantID string) (models.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE competition_id = ? AND participant_id = ?`, competitionID, participantID)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return models.Submission{}, store.ErrNotFound
	}
	if err != nil {
		return models.Submission{}, errors.Wrap(err, "select submission")
	}
	return sub, nil
}

func updateSubmission(ctx context.Context, q queryer, sub models.Submission, expectedVersion int64) error {
	answers, err := encodeAnswers(sub.Answers)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `UPDATE submissions SET
		submitted_at = ?, answers = ?, raw_score = ?, time_taken_ms = ?, status = ?, disqualify_reason = ?, version = ?
		WHERE id = ? AND version = ?`,
		toNullMillis(sub.SubmittedAt), answers, sub.RawScore, sub.TimeTaken.Milliseconds(), string(sub.Status),
		nullString(sub.DisqualifyReason), sub.Version, sub.ID, expectedVersion)
	if err != nil {
		return errors.Wrap(err, "update submission")
	}
	return checkAffected(ctx, q, res, "submissions", sub.ID)
}

func (s *Store) UpdateSubmission(ctx context.Context, sub models.Submission, expectedVersion int64) error {
	return updateSubmission(ctx, s.db, sub, expectedVersion)
}

func (s *Store) ListSubmissions(ctx context.Context, competitionID string) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE competition_id = ? ORDER BY participant_id`, competitionID)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan submission")
		}
		out = append(out, sub)
	}
	return out, errors.Wrap(rows.Err(), "iterate submissions")
}

func (s *Store) ApplyTransition(ctx context.Context, c models.Competition, expectedVersion int64, finalized []models.Submission) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transition")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = updateCompetition(ctx, tx, c, expectedVersion); err != nil {
		return err
	}
	for _, sub := range finalized {
		if err = updateSubmission(ctx, tx, sub, sub.Version-1); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transition")
	}
	return nil
}
