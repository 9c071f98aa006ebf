package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/coffee3333/erudite/core"
)

// Course levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Course statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Challenge difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Submission statuses
const (
	SubmissionPending  = "pending"
	SubmissionGraded   = "graded"
	SubmissionRejected = "rejected"
)

const defaultLanguage = "en"

// slugs longer than the column width get truncated before assignment
const slugMaxLen = 200

var (
	Levels       = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	Statuses     = []string{StatusDraft, StatusPublished, StatusArchived}
	Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}
)

type Course struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Language         string    `json:"language"`
	Level            string    `json:"level"`
	Status           string    `json:"status"`
	FeaturedImageURL string    `json:"featured_image_url,omitempty"`
	Slug             string    `json:"slug"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

var _ core.Owned = Course{}

func (c Course) OwnedBy() string { return c.OwnerID }

type Topic struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
	Slug      string `json:"slug"`
}

var _ core.Owned = Topic{}

func (t Topic) OwnedBy() string { return t.OwnerID }

// Answer is the expected solution of a Challenge. Never serialized to clients.
type Answer struct {
	Value         string
	CaseSensitive bool
}

type Challenge struct {
	ID         string    `json:"id"`
	TopicID    string    `json:"topic_id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Points     int       `json:"points"`
	Difficulty string    `json:"difficulty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	Slug       string    `json:"slug"`
	Options    []string  `json:"options,omitempty"`
	Answer     *Answer   `json:"-"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

var _ core.Owned = Challenge{}

func (ch Challenge) OwnedBy() string { return ch.OwnerID }

type Submission struct {
	ID          string     `json:"id"`
	ChallengeID string     `json:"challenge_id"`
	UserID      string     `json:"user_id"`
	AttemptNo   int        `json:"attempt_no"`
	AnswerText  string     `json:"answer_text"`
	Status      string     `json:"status"`
	Score       float64    `json:"score"`
	Feedback    string     `json:"feedback,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`          // UTC
	GradedAt    *time.Time `json:"graded_at,omitempty"` // UTC; nil until graded
}

var _ core.Owned = Submission{}

func (s Submission) OwnedBy() string { return s.UserID }

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description" validate:"required"`
	Language         string `json:"language" validate:"omitempty,max=30"`
	Level            string `json:"level" validate:"required,courselevel"`
	Status           string `json:"status" validate:"required,coursestatus"`
	FeaturedImageURL string `json:"featured_image_url" validate:"omitempty,url"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Language = core.CleanString(nc.Language, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing
// Course. Empty fields keep their current value; the slug never changes.
type UpdateCourse struct {
	Title            string `json:"title" validate:"omitempty,max=200"`
	Description      string `json:"description"`
	Language         string `json:"language" validate:"omitempty,max=30"`
	Level            string `json:"level" validate:"omitempty,courselevel"`
	Status           string `json:"status" validate:"omitempty,coursestatus"`
	FeaturedImageURL string `json:"featured_image_url" validate:"omitempty,url"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, orig Course) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	if lang := core.CleanString(uc.Language, true); lang != "" {
		uc.Language = lang
	} else {
		uc.Language = orig.Language
	}
	if level := core.CleanString(uc.Level, true); level != "" {
		uc.Level = level
	} else {
		uc.Level = orig.Level
	}
	if status := core.CleanString(uc.Status, true); status != "" {
		uc.Status = status
	} else {
		uc.Status = orig.Status
	}
	if img := core.CleanString(uc.FeaturedImageURL); img != "" {
		uc.FeaturedImageURL = img
	} else {
		uc.FeaturedImageURL = orig.FeaturedImageURL
	}
	return validate.Struct(uc)
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	CourseSlug string `json:"course_slug" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	SortOrder  int    `json:"sort_order" validate:"omitempty,gte=0"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.CourseSlug = core.CleanString(nt.CourseSlug, true /* lower */)
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

// NewChallenge contains information needed to create a new Challenge.
// When Options are provided, CorrectAnswer must be one of them.
type NewChallenge struct {
	TopicSlug     string   `json:"topic_slug" validate:"required"`
	Title         string   `json:"title" validate:"required,max=200"`
	Body          string   `json:"body" validate:"required"`
	Points        int      `json:"points" validate:"omitempty,gte=0"`
	Difficulty    string   `json:"difficulty" validate:"required,difficulty"`
	PhotoURL      string   `json:"photo_url" validate:"omitempty,url"`
	Options       []string `json:"options" validate:"omitempty,dive,required,max=255"`
	CorrectAnswer string   `json:"correct_answer" validate:"required,max=255"`
	CaseSensitive bool     `json:"case_sensitive"`
}

func (nc *NewChallenge) Validate(validate *validator.Validate) error {
	nc.TopicSlug = core.CleanString(nc.TopicSlug, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Body = core.CleanString(nc.Body)
	nc.Difficulty = core.CleanString(nc.Difficulty, true /* lower */)
	nc.CorrectAnswer = core.CleanString(nc.CorrectAnswer)
	for i, opt := range nc.Options {
		nc.Options[i] = core.CleanString(opt)
	}
	return validate.Struct(nc)
}

// NewSubmission contains information needed to record a Submission.
type NewSubmission struct {
	AnswerText string `json:"answer_text" validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.AnswerText = core.CleanString(ns.AnswerText)
	return validate.Struct(ns)
}

type QueryFilter struct {
	Search  string `query:"search"`
	Level   string `query:"level"`
	Status  string `query:"status"`
	OwnerID string `query:"owner"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Level == "" && qf.Status == "" && qf.OwnerID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.OwnerID = core.CleanString(qf.OwnerID)
}
