package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/course"
)

type courseRow struct {
	ID               string      `db:"id"`
	OwnerID          string      `db:"owner_id"`
	Title            string      `db:"title"`
	Description      null.String `db:"description"`
	Language         string      `db:"language"`
	Level            string      `db:"level"`
	Status           string      `db:"status"`
	FeaturedImageURL null.String `db:"featured_image_url"`
	Slug             string      `db:"slug"`
	CreatedAt        null.Time   `db:"created_at"`
	UpdatedAt        null.Time   `db:"updated_at"`
}

type topicRow struct {
	ID        string `db:"id"`
	CourseID  string `db:"course_id"`
	OwnerID   string `db:"owner_id"`
	Title     string `db:"title"`
	SortOrder int    `db:"sort_order"`
	Slug      string `db:"slug"`
}

type challengeRow struct {
	ID            string         `db:"id"`
	TopicID       string         `db:"topic_id"`
	OwnerID       string         `db:"owner_id"`
	Title         string         `db:"title"`
	Body          string         `db:"body"`
	Points        int            `db:"points"`
	Difficulty    string         `db:"difficulty"`
	PhotoURL      null.String    `db:"photo_url"`
	Slug          string         `db:"slug"`
	Options       pq.StringArray `db:"options"`
	Answer        null.String    `db:"answer"`
	CaseSensitive bool           `db:"case_sensitive"`
	CreatedAt     null.Time      `db:"created_at"`
}

type submissionRow struct {
	ID          string      `db:"id"`
	ChallengeID string      `db:"challenge_id"`
	UserID      string      `db:"user_id"`
	AttemptNo   int         `db:"attempt_no"`
	AnswerText  string      `db:"answer_text"`
	Status      string      `db:"status"`
	Score       float64     `db:"score"`
	Feedback    null.String `db:"feedback"`
	CreatedAt   null.Time   `db:"created_at"`
	GradedAt    null.Time   `db:"graded_at"`
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo courseRepository) packCourse(crs course.Course) courseRow {
	return courseRow{
		ID:               crs.ID,
		OwnerID:          crs.OwnerID,
		Title:            crs.Title,
		Description:      null.NewString(crs.Description, crs.Description != ""),
		Language:         crs.Language,
		Level:            crs.Level,
		Status:           crs.Status,
		FeaturedImageURL: null.NewString(crs.FeaturedImageURL, crs.FeaturedImageURL != ""),
		Slug:             crs.Slug,
		CreatedAt:        null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:        null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func (repo courseRepository) unpackCourse(row courseRow) course.Course {
	return course.Course{
		ID:               row.ID,
		OwnerID:          row.OwnerID,
		Title:            row.Title,
		Description:      row.Description.String,
		Language:         row.Language,
		Level:            row.Level,
		Status:           row.Status,
		FeaturedImageURL: row.FeaturedImageURL.String,
		Slug:             row.Slug,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}

func (repo courseRepository) unpackTopic(row topicRow) course.Topic {
	return course.Topic(row)
}

func (repo courseRepository) unpackChallenge(row challengeRow) course.Challenge {
	ch := course.Challenge{
		ID:         row.ID,
		TopicID:    row.TopicID,
		OwnerID:    row.OwnerID,
		Title:      row.Title,
		Body:       row.Body,
		Points:     row.Points,
		Difficulty: row.Difficulty,
		PhotoURL:   row.PhotoURL.String,
		Slug:       row.Slug,
		Options:    []string(row.Options),
		CreatedAt:  row.CreatedAt.Time,
	}
	if row.Answer.Valid {
		ch.Answer = &course.Answer{Value: row.Answer.String, CaseSensitive: row.CaseSensitive}
	}
	return ch
}

func (repo courseRepository) unpackSubmission(row submissionRow) course.Submission {
	return course.Submission{
		ID:          row.ID,
		ChallengeID: row.ChallengeID,
		UserID:      row.UserID,
		AttemptNo:   row.AttemptNo,
		AnswerText:  row.AnswerText,
		Status:      row.Status,
		Score:       row.Score,
		Feedback:    row.Feedback.String,
		CreatedAt:   row.CreatedAt.Time,
		GradedAt:    row.GradedAt.Ptr(),
	}
}

func (repo courseRepository) slugExists(table, slug string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1)`, table)
	if err := repo.db.Get(&exists, query, slug); err != nil {
		return false, errors.Wrap(err, "checking "+table+" slug")
	}
	return exists, nil
}

// Courses

func (repo courseRepository) CourseSlugExists(slug string) (bool, error) {
	return repo.slugExists("course", slug)
}

func (repo courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	row := repo.packCourse(crs)
	_, err := repo.db.NamedExec(`
		INSERT INTO course (id, owner_id, title, description, language, level, status, featured_image_url, slug, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :description, :language, :level, :status, :featured_image_url, :slug, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "slug") {
			return course.Course{}, course.ErrSlugExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourseByID(id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.Get(&row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrCourseNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by ID")
	}
	return repo.unpackCourse(row), nil
}

func (repo courseRepository) GetCourseBySlug(slug string) (course.Course, error) {
	var row courseRow
	if err := repo.db.Get(&row, `SELECT * FROM course WHERE slug = $1`, slug); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrCourseNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by slug")
	}
	return repo.unpackCourse(row), nil
}

func (repo courseRepository) FilterCourses(filter course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	query := `SELECT * FROM course`
	var clauses []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	// courses with Title or Description matching the search keyword
	if filter.Search != "" {
		ph := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s)", ph))
	}
	if filter.Level != "" {
		clauses = append(clauses, "level = "+arg(filter.Level))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(filter.Status))
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = "+arg(filter.OwnerID))
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if len(orderings) > 0 {
		orderList := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []courseRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.unpackCourse(row))
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(crs course.Course) (course.Course, error) {
	row := repo.packCourse(crs)
	res, err := repo.db.NamedExec(`
		UPDATE course
		SET title = :title, description = :description, language = :language, level = :level,
		    status = :status, featured_image_url = :featured_image_url, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrCourseNotFound
	}
	return crs, nil
}

func (repo courseRepository) DeleteCoursesByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM course WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

// Topics

func (repo courseRepository) TopicSlugExists(slug string) (bool, error) {
	return repo.slugExists("topic", slug)
}

func (repo courseRepository) CreateTopic(tpc course.Topic) (course.Topic, error) {
	row := topicRow(tpc)
	_, err := repo.db.NamedExec(`
		INSERT INTO topic (id, course_id, owner_id, title, sort_order, slug)
		VALUES (:id, :course_id, :owner_id, :title, :sort_order, :slug)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "slug") {
			return course.Topic{}, course.ErrSlugExists
		}
		return course.Topic{}, errors.Wrap(err, "inserting topic")
	}
	return tpc, nil
}

func (repo courseRepository) GetTopicBySlug(slug string) (course.Topic, error) {
	var row topicRow
	if err := repo.db.Get(&row, `SELECT * FROM topic WHERE slug = $1`, slug); err != nil {
		if err == sql.ErrNoRows {
			return course.Topic{}, course.ErrTopicNotFound
		}
		return course.Topic{}, errors.Wrap(err, "finding topic by slug")
	}
	return repo.unpackTopic(row), nil
}

func (repo courseRepository) QueryTopicsByCourseID(courseID string) ([]course.Topic, error) {
	var rows []topicRow
	err := repo.db.Select(&rows, `SELECT * FROM topic WHERE course_id = $1 ORDER BY sort_order, title`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	topics := make([]course.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, repo.unpackTopic(row))
	}
	return topics, nil
}

func (repo courseRepository) UpdateTopic(tpc course.Topic) (course.Topic, error) {
	row := topicRow(tpc)
	res, err := repo.db.NamedExec(`UPDATE topic SET title = :title, sort_order = :sort_order WHERE id = :id`, row)
	if err != nil {
		return course.Topic{}, errors.Wrap(err, "updating topic")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Topic{}, course.ErrTopicNotFound
	}
	return tpc, nil
}

func (repo courseRepository) DeleteTopicsByID(ids ...string) error {
	// challenges cascade at the schema level
	if _, err := repo.db.Exec(`DELETE FROM topic WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting topics")
	}
	return nil
}

// Challenges

func (repo courseRepository) ChallengeSlugExists(slug string) (bool, error) {
	return repo.slugExists("challenge", slug)
}

func (repo courseRepository) CreateChallenge(ch course.Challenge) (course.Challenge, error) {
	row := challengeRow{
		ID:         ch.ID,
		TopicID:    ch.TopicID,
		OwnerID:    ch.OwnerID,
		Title:      ch.Title,
		Body:       ch.Body,
		Points:     ch.Points,
		Difficulty: ch.Difficulty,
		PhotoURL:   null.NewString(ch.PhotoURL, ch.PhotoURL != ""),
		Slug:       ch.Slug,
		Options:    pq.StringArray(ch.Options),
		CreatedAt:  null.NewTime(ch.CreatedAt.UTC(), !ch.CreatedAt.IsZero()),
	}
	if ch.Answer != nil {
		row.Answer = null.StringFrom(ch.Answer.Value)
		row.CaseSensitive = ch.Answer.CaseSensitive
	}
	_, err := repo.db.NamedExec(`
		INSERT INTO challenge (id, topic_id, owner_id, title, body, points, difficulty, photo_url, slug, options, answer, case_sensitive, created_at)
		VALUES (:id, :topic_id, :owner_id, :title, :body, :points, :difficulty, :photo_url, :slug, :options, :answer, :case_sensitive, :created_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, "slug") {
			return course.Challenge{}, course.ErrSlugExists
		}
		return course.Challenge{}, errors.Wrap(err, "inserting challenge")
	}
	return ch, nil
}

func (repo courseRepository) GetChallengeBySlug(slug string) (course.Challenge, error) {
	var row challengeRow
	if err := repo.db.Get(&row, `SELECT * FROM challenge WHERE slug = $1`, slug); err != nil {
		if err == sql.ErrNoRows {
			return course.Challenge{}, course.ErrChallengeNotFound
		}
		return course.Challenge{}, errors.Wrap(err, "finding challenge by slug")
	}
	return repo.unpackChallenge(row), nil
}

func (repo courseRepository) QueryChallengesByTopicID(topicID string) ([]course.Challenge, error) {
	var rows []challengeRow
	err := repo.db.Select(&rows, `SELECT * FROM challenge WHERE topic_id = $1 ORDER BY created_at`, topicID)
	if err != nil {
		return nil, errors.Wrap(err, "querying challenges")
	}
	challenges := make([]course.Challenge, 0, len(rows))
	for _, row := range rows {
		challenges = append(challenges, repo.unpackChallenge(row))
	}
	return challenges, nil
}

func (repo courseRepository) DeleteChallengesByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM challenge WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting challenges")
	}
	return nil
}

// Submissions

func (repo courseRepository) CreateSubmission(sub course.Submission) (course.Submission, error) {
	row := submissionRow{
		ID:          sub.ID,
		ChallengeID: sub.ChallengeID,
		UserID:      sub.UserID,
		AttemptNo:   sub.AttemptNo,
		AnswerText:  sub.AnswerText,
		Status:      sub.Status,
		Score:       sub.Score,
		Feedback:    null.NewString(sub.Feedback, sub.Feedback != ""),
		CreatedAt:   null.NewTime(sub.CreatedAt.UTC(), !sub.CreatedAt.IsZero()),
		GradedAt:    null.TimeFromPtr(sub.GradedAt),
	}
	_, err := repo.db.NamedExec(`
		INSERT INTO submission (id, challenge_id, user_id, attempt_no, answer_text, status, score, feedback, created_at, graded_at)
		VALUES (:id, :challenge_id, :user_id, :attempt_no, :answer_text, :status, :score, :feedback, :created_at, :graded_at)`,
		row,
	)
	if err != nil {
		return course.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo courseRepository) QuerySubmissionsByChallengeID(challengeID string) ([]course.Submission, error) {
	var rows []submissionRow
	err := repo.db.Select(&rows, `SELECT * FROM submission WHERE challenge_id = $1 ORDER BY created_at DESC`, challengeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]course.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, repo.unpackSubmission(row))
	}
	return subs, nil
}

func (repo courseRepository) LastAttemptNo(challengeID, userID string) (int, error) {
	var last int
	err := repo.db.Get(&last, `
		SELECT COALESCE(MAX(attempt_no), 0) FROM submission
		WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "finding last attempt number")
	}
	return last, nil
}
