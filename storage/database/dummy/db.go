package dummydb

import (
	"sync"

	"github.com/coffee3333/erudite/core/course"
	"github.com/coffee3333/erudite/core/otp"
	"github.com/coffee3333/erudite/core/user"
)

type (
	DB struct {
		user       *userTable
		code       *codeTable
		course     *courseTable
		topic      *topicTable
		challenge  *challengeTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	codeTable struct {
		sync.RWMutex
		table map[string]*otp.Code
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	topicTable struct {
		sync.RWMutex
		table map[string]*course.Topic
	}

	challengeTable struct {
		sync.RWMutex
		table map[string]*course.Challenge
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*course.Submission
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		code:       &codeTable{table: make(map[string]*otp.Code)},
		course:     &courseTable{table: make(map[string]*course.Course)},
		topic:      &topicTable{table: make(map[string]*course.Topic)},
		challenge:  &challengeTable{table: make(map[string]*course.Challenge)},
		submission: &submissionTable{table: make(map[string]*course.Submission)},
	}
	return db, nil
}
