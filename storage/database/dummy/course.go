package dummydb

import (
	"sort"
	"strings"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/course"
)

type courseRepository struct {
	course     *courseTable
	topic      *topicTable
	challenge  *challengeTable
	submission *submissionTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{
		course:     db.course,
		topic:      db.topic,
		challenge:  db.challenge,
		submission: db.submission,
	}
}

// Courses

func (repo *courseRepository) CourseSlugExists(slug string) (bool, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	for _, crs := range repo.course.table {
		if crs.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	for _, c := range repo.course.table {
		if c.Slug == crs.Slug {
			return course.Course{}, course.ErrSlugExists
		}
	}
	repo.course.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(id string) (course.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	if crs, ok := repo.course.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) GetCourseBySlug(slug string) (course.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	for _, crs := range repo.course.table {
		if crs.Slug == slug {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) FilterCourses(filter course.QueryFilter, orderings ...core.DBOrdering) ([]course.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	courses := make([]course.Course, 0, len(repo.course.table))
	for _, crs := range repo.course.table {
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(crs.Title), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(crs.Description), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Level != "" && crs.Level != filter.Level {
			continue
		}
		if filter.Status != "" && crs.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && crs.OwnerID != filter.OwnerID {
			continue
		}
		courses = append(courses, *crs)
	}

	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(crs course.Course) (course.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	if _, ok := repo.course.table[crs.ID]; !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	repo.course.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) DeleteCoursesByID(ids ...string) error {
	repo.course.Lock()
	defer repo.course.Unlock()
	for _, id := range ids {
		delete(repo.course.table, id)
	}
	return nil
}

// Topics

func (repo *courseRepository) TopicSlugExists(slug string) (bool, error) {
	repo.topic.RLock()
	defer repo.topic.RUnlock()

	for _, tpc := range repo.topic.table {
		if tpc.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateTopic(tpc course.Topic) (course.Topic, error) {
	repo.topic.Lock()
	defer repo.topic.Unlock()

	for _, t := range repo.topic.table {
		if t.Slug == tpc.Slug {
			return course.Topic{}, course.ErrSlugExists
		}
	}
	repo.topic.table[tpc.ID] = &tpc
	return tpc, nil
}

func (repo *courseRepository) GetTopicBySlug(slug string) (course.Topic, error) {
	repo.topic.RLock()
	defer repo.topic.RUnlock()

	for _, tpc := range repo.topic.table {
		if tpc.Slug == slug {
			return *tpc, nil
		}
	}
	return course.Topic{}, course.ErrTopicNotFound
}

func (repo *courseRepository) QueryTopicsByCourseID(courseID string) ([]course.Topic, error) {
	repo.topic.RLock()
	defer repo.topic.RUnlock()

	topics := make([]course.Topic, 0)
	for _, tpc := range repo.topic.table {
		if tpc.CourseID == courseID {
			topics = append(topics, *tpc)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].SortOrder < topics[j].SortOrder })
	return topics, nil
}

func (repo *courseRepository) UpdateTopic(tpc course.Topic) (course.Topic, error) {
	repo.topic.Lock()
	defer repo.topic.Unlock()

	if _, ok := repo.topic.table[tpc.ID]; !ok {
		return course.Topic{}, course.ErrTopicNotFound
	}
	repo.topic.table[tpc.ID] = &tpc
	return tpc, nil
}

func (repo *courseRepository) DeleteTopicsByID(ids ...string) error {
	repo.topic.Lock()
	repo.challenge.Lock()
	defer repo.topic.Unlock()
	defer repo.challenge.Unlock()

	for _, id := range ids {
		delete(repo.topic.table, id)
		for chID, ch := range repo.challenge.table {
			if ch.TopicID == id {
				delete(repo.challenge.table, chID)
			}
		}
	}
	return nil
}

// Challenges

func (repo *courseRepository) ChallengeSlugExists(slug string) (bool, error) {
	repo.challenge.RLock()
	defer repo.challenge.RUnlock()

	for _, ch := range repo.challenge.table {
		if ch.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateChallenge(ch course.Challenge) (course.Challenge, error) {
	repo.challenge.Lock()
	defer repo.challenge.Unlock()

	for _, c := range repo.challenge.table {
		if c.Slug == ch.Slug {
			return course.Challenge{}, course.ErrSlugExists
		}
	}
	repo.challenge.table[ch.ID] = &ch
	return ch, nil
}

func (repo *courseRepository) GetChallengeBySlug(slug string) (course.Challenge, error) {
	repo.challenge.RLock()
	defer repo.challenge.RUnlock()

	for _, ch := range repo.challenge.table {
		if ch.Slug == slug {
			return *ch, nil
		}
	}
	return course.Challenge{}, course.ErrChallengeNotFound
}

func (repo *courseRepository) QueryChallengesByTopicID(topicID string) ([]course.Challenge, error) {
	repo.challenge.RLock()
	defer repo.challenge.RUnlock()

	challenges := make([]course.Challenge, 0)
	for _, ch := range repo.challenge.table {
		if ch.TopicID == topicID {
			challenges = append(challenges, *ch)
		}
	}
	sort.Slice(challenges, func(i, j int) bool { return challenges[i].CreatedAt.Before(challenges[j].CreatedAt) })
	return challenges, nil
}

func (repo *courseRepository) DeleteChallengesByID(ids ...string) error {
	repo.challenge.Lock()
	defer repo.challenge.Unlock()
	for _, id := range ids {
		delete(repo.challenge.table, id)
	}
	return nil
}

// Submissions

func (repo *courseRepository) CreateSubmission(sub course.Submission) (course.Submission, error) {
	repo.submission.Lock()
	defer repo.submission.Unlock()
	repo.submission.table[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) QuerySubmissionsByChallengeID(challengeID string) ([]course.Submission, error) {
	repo.submission.RLock()
	defer repo.submission.RUnlock()

	subs := make([]course.Submission, 0)
	for _, sub := range repo.submission.table {
		if sub.ChallengeID == challengeID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (repo *courseRepository) LastAttemptNo(challengeID, userID string) (int, error) {
	repo.submission.RLock()
	defer repo.submission.RUnlock()

	last := 0
	for _, sub := range repo.submission.table {
		if sub.ChallengeID == challengeID && sub.UserID == userID && sub.AttemptNo > last {
			last = sub.AttemptNo
		}
	}
	return last, nil
}
