package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/user"
	emailsvc "github.com/trezcool/klassenbuch/services/email"
	"github.com/trezcool/klassenbuch/services/filestore"
	logsvc "github.com/trezcool/klassenbuch/services/logger"
	"github.com/trezcool/klassenbuch/storage/database"
	sqlxrepos "github.com/trezcool/klassenbuch/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	uploadDir := conf.Storage.UploadDir
	if !filepath.IsAbs(uploadDir) {
		uploadDir = filepath.Join(conf.WorkDir, uploadDir)
	}
	uploads, err := filestore.NewLocalStore(uploadDir)
	errAndDie(err)

	// start CLI
	users := sqlxrepos.NewTable[user.User](db)
	cli := commandLine{
		db:     db,
		users:  users,
		usrSvc: user.NewService(users, emailsvc.NewConsoleService(conf, logger), validate, conf),
		files:  file.NewService(sqlxrepos.NewTable[file.File](db), uploads, validate),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
