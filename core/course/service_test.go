package course

import (
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffee3333/erudite/core"
)

type fakeRepository struct {
	mu          sync.RWMutex
	courses     []Course
	topics      []Topic
	challenges  []Challenge
	submissions []Submission
}

var _ Repository = (*fakeRepository)(nil)

func (r *fakeRepository) CourseSlugExists(slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, crs := range r.courses {
		if crs.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) CreateCourse(crs Course) (Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses = append(r.courses, crs)
	return crs, nil
}

func (r *fakeRepository) GetCourseByID(id string) (Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, crs := range r.courses {
		if crs.ID == id {
			return crs, nil
		}
	}
	return Course{}, ErrCourseNotFound
}

func (r *fakeRepository) GetCourseBySlug(slug string) (Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, crs := range r.courses {
		if crs.Slug == slug {
			return crs, nil
		}
	}
	return Course{}, ErrCourseNotFound
}

func (r *fakeRepository) FilterCourses(filter QueryFilter, orderings ...core.DBOrdering) ([]Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Course
	for _, crs := range r.courses {
		if filter.Level != "" && crs.Level != filter.Level {
			continue
		}
		if filter.Status != "" && crs.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && crs.OwnerID != filter.OwnerID {
			continue
		}
		res = append(res, crs)
	}
	return res, nil
}

func (r *fakeRepository) UpdateCourse(crs Course) (Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.courses {
		if r.courses[i].ID == crs.ID {
			r.courses[i] = crs
			return crs, nil
		}
	}
	return Course{}, ErrCourseNotFound
}

func (r *fakeRepository) DeleteCoursesByID(ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		for i := range r.courses {
			if r.courses[i].ID == id {
				r.courses = append(r.courses[:i], r.courses[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (r *fakeRepository) TopicSlugExists(slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tpc := range r.topics {
		if tpc.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) CreateTopic(tpc Topic) (Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, tpc)
	return tpc, nil
}

func (r *fakeRepository) GetTopicBySlug(slug string) (Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tpc := range r.topics {
		if tpc.Slug == slug {
			return tpc, nil
		}
	}
	return Topic{}, ErrTopicNotFound
}

func (r *fakeRepository) QueryTopicsByCourseID(courseID string) ([]Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Topic
	for _, tpc := range r.topics {
		if tpc.CourseID == courseID {
			res = append(res, tpc)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].SortOrder < res[j].SortOrder })
	return res, nil
}

func (r *fakeRepository) UpdateTopic(tpc Topic) (Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.topics {
		if r.topics[i].ID == tpc.ID {
			r.topics[i] = tpc
			return tpc, nil
		}
	}
	return Topic{}, ErrTopicNotFound
}

func (r *fakeRepository) DeleteTopicsByID(ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		for i := range r.topics {
			if r.topics[i].ID == id {
				r.topics = append(r.topics[:i], r.topics[i+1:]...)
				break
			}
		}
		var kept []Challenge
		for _, ch := range r.challenges {
			if ch.TopicID != id {
				kept = append(kept, ch)
			}
		}
		r.challenges = kept
	}
	return nil
}

func (r *fakeRepository) ChallengeSlugExists(slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.challenges {
		if ch.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) CreateChallenge(ch Challenge) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges = append(r.challenges, ch)
	return ch, nil
}

func (r *fakeRepository) GetChallengeBySlug(slug string) (Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.challenges {
		if ch.Slug == slug {
			return ch, nil
		}
	}
	return Challenge{}, ErrChallengeNotFound
}

func (r *fakeRepository) QueryChallengesByTopicID(topicID string) ([]Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Challenge
	for _, ch := range r.challenges {
		if ch.TopicID == topicID {
			res = append(res, ch)
		}
	}
	return res, nil
}

func (r *fakeRepository) DeleteChallengesByID(ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		for i := range r.challenges {
			if r.challenges[i].ID == id {
				r.challenges = append(r.challenges[:i], r.challenges[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (r *fakeRepository) CreateSubmission(sub Submission) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, sub)
	return sub, nil
}

func (r *fakeRepository) QuerySubmissionsByChallengeID(challengeID string) ([]Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []Submission
	for _, sub := range r.submissions {
		if sub.ChallengeID == challengeID {
			res = append(res, sub)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *fakeRepository) LastAttemptNo(challengeID, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	last := 0
	for _, sub := range r.submissions {
		if sub.ChallengeID == challengeID && sub.UserID == userID && sub.AttemptNo > last {
			last = sub.AttemptNo
		}
	}
	return last, nil
}

func TestCreateCourseSlugs(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Intro To Go!", Level: LevelBeginner, Status: StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "intro-to-go", crs.Slug)
	assert.Equal(t, defaultLanguage, crs.Language)
	assert.NotEmpty(t, crs.ID)

	// a colliding title gets a counter suffix
	crs2, err := svc.CreateCourse("owner2", NewCourse{Title: "Intro; To - Go?", Level: LevelBeginner, Status: StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "intro-to-go-1", crs2.Slug)

	// a title with no usable runes falls back
	crs3, err := svc.CreateCourse("owner1", NewCourse{Title: "!!!", Level: LevelBeginner, Status: StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "course", crs3.Slug)
}

func TestUpdateCourseKeepsSlug(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Intro To Go", Level: LevelBeginner, Status: StatusDraft})
	require.NoError(t, err)

	updated, err := svc.UpdateCourse(crs, UpdateCourse{
		Title:       "Advanced Go",
		Description: "now with generics",
		Language:    crs.Language,
		Level:       LevelAdvanced,
		Status:      StatusPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Go", updated.Title)
	assert.Equal(t, crs.Slug, updated.Slug)
	assert.True(t, updated.UpdatedAt.After(crs.UpdatedAt) || updated.UpdatedAt.Equal(crs.UpdatedAt))
}

func TestTopicsOrderedBySortOrder(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Go Course", Level: LevelBeginner, Status: StatusPublished})
	require.NoError(t, err)

	_, err = svc.CreateTopic("owner1", NewTopic{CourseSlug: crs.Slug, Title: "Concurrency", SortOrder: 2})
	require.NoError(t, err)
	_, err = svc.CreateTopic("owner1", NewTopic{CourseSlug: crs.Slug, Title: "Basics", SortOrder: 1})
	require.NoError(t, err)

	topics, err := svc.QueryTopicsByCourse(crs.Slug)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Basics", topics[0].Title)
	assert.Equal(t, "Concurrency", topics[1].Title)
}

func TestDeleteTopicCascadesChallenges(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Go Course", Level: LevelBeginner, Status: StatusPublished})
	require.NoError(t, err)
	tpc, err := svc.CreateTopic("owner1", NewTopic{CourseSlug: crs.Slug, Title: "Basics", SortOrder: 1})
	require.NoError(t, err)
	_, err = svc.CreateChallenge("owner1", NewChallenge{
		TopicSlug:     tpc.Slug,
		Title:         "Hello World",
		Body:          "print hello world",
		Points:        5,
		Difficulty:    DifficultyEasy,
		CorrectAnswer: "hello world",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTopic(tpc.ID))
	assert.Empty(t, repo.challenges)
}

func TestCheckAnswer(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Go Course", Level: LevelBeginner, Status: StatusPublished})
	require.NoError(t, err)
	tpc, err := svc.CreateTopic("owner1", NewTopic{CourseSlug: crs.Slug, Title: "Basics", SortOrder: 1})
	require.NoError(t, err)

	insensitive, err := svc.CreateChallenge("owner1", NewChallenge{
		TopicSlug:     tpc.Slug,
		Title:         "Keyword",
		Body:          "which keyword starts a goroutine?",
		Points:        5,
		Difficulty:    DifficultyEasy,
		CorrectAnswer: "go",
	})
	require.NoError(t, err)

	sensitive, err := svc.CreateChallenge("owner1", NewChallenge{
		TopicSlug:     tpc.Slug,
		Title:         "Exported Name",
		Body:          "name the exported printer in fmt",
		Points:        10,
		Difficulty:    DifficultyMedium,
		CorrectAnswer: "Println",
		CaseSensitive: true,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		slug   string
		answer string
		want   bool
	}{
		{"exact match", insensitive.Slug, "go", true},
		{"case folded", insensitive.Slug, "GO", true},
		{"surrounding space trimmed", insensitive.Slug, "  go  ", true},
		{"wrong answer", insensitive.Slug, "run", false},
		{"sensitive exact", sensitive.Slug, "Println", true},
		{"sensitive wrong case", sensitive.Slug, "println", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.CheckAnswer(tt.slug, tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCreateSubmissionAttemptNumbers(t *testing.T) {
	repo := new(fakeRepository)
	svc := NewService(repo)

	crs, err := svc.CreateCourse("owner1", NewCourse{Title: "Go Course", Level: LevelBeginner, Status: StatusPublished})
	require.NoError(t, err)
	tpc, err := svc.CreateTopic("owner1", NewTopic{CourseSlug: crs.Slug, Title: "Basics", SortOrder: 1})
	require.NoError(t, err)
	ch, err := svc.CreateChallenge("owner1", NewChallenge{
		TopicSlug:     tpc.Slug,
		Title:         "Keyword",
		Body:          "which keyword starts a goroutine?",
		Points:        5,
		Difficulty:    DifficultyEasy,
		CorrectAnswer: "go",
	})
	require.NoError(t, err)

	sub1, err := svc.CreateSubmission("student1", ch.Slug, NewSubmission{AnswerText: "run"})
	require.NoError(t, err)
	assert.Equal(t, 1, sub1.AttemptNo)
	assert.Equal(t, SubmissionPending, sub1.Status)
	assert.Nil(t, sub1.GradedAt)

	// an ungraded submission must not serialize a bogus graded_at timestamp
	body, err := json.Marshal(sub1)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "graded_at")

	sub2, err := svc.CreateSubmission("student1", ch.Slug, NewSubmission{AnswerText: "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, sub2.AttemptNo)

	// attempts are numbered per user
	other, err := svc.CreateSubmission("student2", ch.Slug, NewSubmission{AnswerText: "go"})
	require.NoError(t, err)
	assert.Equal(t, 1, other.AttemptNo)
}
