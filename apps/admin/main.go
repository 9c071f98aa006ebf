package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/otp"
	"github.com/coffee3333/erudite/core/user"
	emailsvc "github.com/coffee3333/erudite/services/email"
	"github.com/coffee3333/erudite/storage/database"
	sqlxrepos "github.com/coffee3333/erudite/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	codeSvc := otp.NewService(sqlxrepos.NewCodeRepository(dbx))
	mailSvc := emailsvc.NewConsoleService(conf)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(dbx), codeSvc, mailSvc, conf)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: usrSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
