package course

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core"
)

var (
	// errors
	ErrCourseNotFound      = errors.New("course not found")
	ErrTopicNotFound       = errors.New("topic not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrSlugExists          = errors.New("slug already in use")
	ErrAnswerNotConfigured = errors.New("correct answer is not configured for this challenge")
)

// bounded retries when a concurrent creation wins the slug uniqueness race
const slugWriteRetries = 3

type (
	Repository interface {
		// courses
		CourseSlugExists(slug string) (bool, error)
		CreateCourse(crs Course) (Course, error)
		GetCourseByID(id string) (Course, error)
		GetCourseBySlug(slug string) (Course, error)
		// FilterCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Course.Title or Course.Description.
		FilterCourses(filter QueryFilter, orderings ...core.DBOrdering) ([]Course, error)
		UpdateCourse(crs Course) (Course, error)
		DeleteCoursesByID(ids ...string) error

		// topics
		TopicSlugExists(slug string) (bool, error)
		CreateTopic(tpc Topic) (Topic, error)
		GetTopicBySlug(slug string) (Topic, error)
		QueryTopicsByCourseID(courseID string) ([]Topic, error) // ordered by SortOrder
		UpdateTopic(tpc Topic) (Topic, error)
		// DeleteTopicsByID also removes the topics' challenges.
		DeleteTopicsByID(ids ...string) error

		// challenges
		ChallengeSlugExists(slug string) (bool, error)
		CreateChallenge(ch Challenge) (Challenge, error)
		GetChallengeBySlug(slug string) (Challenge, error) // options and answer included
		QueryChallengesByTopicID(topicID string) ([]Challenge, error)
		DeleteChallengesByID(ids ...string) error

		// submissions
		CreateSubmission(sub Submission) (Submission, error)
		QuerySubmissionsByChallengeID(challengeID string) ([]Submission, error) // newest first
		LastAttemptNo(challengeID, userID string) (int, error)                  // 0 when none
	}

	Service interface {
		CreateCourse(ownerID string, nc NewCourse) (Course, error)
		GetCourseBySlug(slug string) (Course, error)
		QueryCourses(filter *QueryFilter, orderings []core.DBOrdering) ([]Course, error)
		UpdateCourse(orig Course, uc UpdateCourse) (Course, error)
		DeleteCourse(id string) error

		CreateTopic(ownerID string, nt NewTopic) (Topic, error)
		GetTopicBySlug(slug string) (Topic, error)
		QueryTopicsByCourse(courseSlug string) ([]Topic, error)
		RenameTopic(orig Topic, title string) (Topic, error)
		DeleteTopic(id string) error

		CreateChallenge(ownerID string, nc NewChallenge) (Challenge, error)
		GetChallengeBySlug(slug string) (Challenge, error)
		QueryChallengesByTopic(topicSlug string) ([]Challenge, error)
		DeleteChallenge(id string) error
		CheckAnswer(challengeSlug, answer string) (bool, error)

		CreateSubmission(userID, challengeSlug string, ns NewSubmission) (Submission, error)
		QuerySubmissionsByChallenge(challengeSlug string) ([]Submission, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Courses

func (svc *service) CreateCourse(ownerID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	lang := nc.Language
	if lang == "" {
		lang = defaultLanguage
	}
	crs := Course{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		Title:            nc.Title,
		Description:      nc.Description,
		Language:         lang,
		Level:            nc.Level,
		Status:           nc.Status,
		FeaturedImageURL: nc.FeaturedImageURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for attempt := 0; ; attempt++ {
		slug, err := svc.assignSlug(crs.Title, "course", svc.repo.CourseSlugExists)
		if err != nil {
			return Course{}, err
		}
		crs.Slug = slug

		created, err := svc.repo.CreateCourse(crs)
		if errors.Cause(err) == ErrSlugExists && attempt < slugWriteRetries {
			continue
		}
		return created, err
	}
}

func (svc *service) GetCourseBySlug(slug string) (Course, error) {
	return svc.repo.GetCourseBySlug(core.CleanString(slug, true /* lower */))
}

func (svc *service) QueryCourses(filter *QueryFilter, orderings []core.DBOrdering) ([]Course, error) {
	filter.Clean()
	return svc.repo.FilterCourses(*filter, orderings...)
}

func (svc *service) UpdateCourse(orig Course, uc UpdateCourse) (Course, error) {
	crs := orig
	crs.Title = uc.Title
	crs.Description = uc.Description
	crs.Language = uc.Language
	crs.Level = uc.Level
	crs.Status = uc.Status
	crs.FeaturedImageURL = uc.FeaturedImageURL
	crs.UpdatedAt = time.Now().UTC()
	// the slug is assigned once at creation; renames never recompute it
	return svc.repo.UpdateCourse(crs)
}

func (svc *service) DeleteCourse(id string) error {
	return svc.repo.DeleteCoursesByID(id)
}

// Topics

func (svc *service) CreateTopic(ownerID string, nt NewTopic) (Topic, error) {
	crs, err := svc.GetCourseBySlug(nt.CourseSlug)
	if err != nil {
		return Topic{}, err
	}

	tpc := Topic{
		ID:        uuid.New().String(),
		CourseID:  crs.ID,
		OwnerID:   ownerID,
		Title:     nt.Title,
		SortOrder: nt.SortOrder,
	}

	for attempt := 0; ; attempt++ {
		slug, err := svc.assignSlug(tpc.Title, "topic", svc.repo.TopicSlugExists)
		if err != nil {
			return Topic{}, err
		}
		tpc.Slug = slug

		created, err := svc.repo.CreateTopic(tpc)
		if errors.Cause(err) == ErrSlugExists && attempt < slugWriteRetries {
			continue
		}
		return created, err
	}
}

func (svc *service) GetTopicBySlug(slug string) (Topic, error) {
	return svc.repo.GetTopicBySlug(core.CleanString(slug, true /* lower */))
}

func (svc *service) QueryTopicsByCourse(courseSlug string) ([]Topic, error) {
	crs, err := svc.GetCourseBySlug(courseSlug)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryTopicsByCourseID(crs.ID)
}

func (svc *service) RenameTopic(orig Topic, title string) (Topic, error) {
	orig.Title = core.CleanString(title)
	// the slug is assigned once at creation; renames never recompute it
	return svc.repo.UpdateTopic(orig)
}

func (svc *service) DeleteTopic(id string) error {
	return svc.repo.DeleteTopicsByID(id)
}

// Challenges

func (svc *service) CreateChallenge(ownerID string, nc NewChallenge) (Challenge, error) {
	tpc, err := svc.GetTopicBySlug(nc.TopicSlug)
	if err != nil {
		return Challenge{}, err
	}

	ch := Challenge{
		ID:         uuid.New().String(),
		TopicID:    tpc.ID,
		OwnerID:    ownerID,
		Title:      nc.Title,
		Body:       nc.Body,
		Points:     nc.Points,
		Difficulty: nc.Difficulty,
		PhotoURL:   nc.PhotoURL,
		Options:    nc.Options,
		Answer:     &Answer{Value: nc.CorrectAnswer, CaseSensitive: nc.CaseSensitive},
		CreatedAt:  time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		slug, err := svc.assignSlug(ch.Title, "challenge", svc.repo.ChallengeSlugExists)
		if err != nil {
			return Challenge{}, err
		}
		ch.Slug = slug

		created, err := svc.repo.CreateChallenge(ch)
		if errors.Cause(err) == ErrSlugExists && attempt < slugWriteRetries {
			continue
		}
		return created, err
	}
}

func (svc *service) GetChallengeBySlug(slug string) (Challenge, error) {
	return svc.repo.GetChallengeBySlug(core.CleanString(slug, true /* lower */))
}

func (svc *service) QueryChallengesByTopic(topicSlug string) ([]Challenge, error) {
	tpc, err := svc.GetTopicBySlug(topicSlug)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryChallengesByTopicID(tpc.ID)
}

func (svc *service) DeleteChallenge(id string) error {
	return svc.repo.DeleteChallengesByID(id)
}

// CheckAnswer compares a submitted answer against the challenge's expected
// answer. Both sides are trimmed; comparison is case-insensitive unless the
// answer was configured case-sensitive.
func (svc *service) CheckAnswer(challengeSlug, answer string) (bool, error) {
	ch, err := svc.GetChallengeBySlug(challengeSlug)
	if err != nil {
		return false, err
	}
	if ch.Answer == nil {
		return false, ErrAnswerNotConfigured
	}

	provided := strings.TrimSpace(answer)
	expected := strings.TrimSpace(ch.Answer.Value)
	if ch.Answer.CaseSensitive {
		return provided == expected, nil
	}
	return strings.EqualFold(provided, expected), nil
}

// Submissions

func (svc *service) CreateSubmission(userID, challengeSlug string, ns NewSubmission) (Submission, error) {
	ch, err := svc.GetChallengeBySlug(challengeSlug)
	if err != nil {
		return Submission{}, err
	}
	last, err := svc.repo.LastAttemptNo(ch.ID, userID)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{
		ID:          uuid.New().String(),
		ChallengeID: ch.ID,
		UserID:      userID,
		AttemptNo:   last + 1,
		AnswerText:  ns.AnswerText,
		Status:      SubmissionPending,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateSubmission(sub)
}

func (svc *service) QuerySubmissionsByChallenge(challengeSlug string) ([]Submission, error) {
	ch, err := svc.GetChallengeBySlug(challengeSlug)
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissionsByChallengeID(ch.ID)
}

// assignSlug runs the shared slug assignment against a scope-specific existence check.
func (svc *service) assignSlug(title, fallback string, slugTaken func(string) (bool, error)) (string, error) {
	var checkErr error
	exists := func(candidate string) bool {
		taken, err := slugTaken(candidate)
		if err != nil {
			checkErr = err
			return false
		}
		return taken
	}
	slug, err := core.AssignSlug(title, fallback, slugMaxLen, exists)
	if checkErr != nil {
		return "", errors.Wrapf(checkErr, "checking %s slug", fallback)
	}
	return slug, err
}
