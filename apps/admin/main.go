package main

import (
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
	logsvc "github.com/heroesdelapatria/portal/services/logger"
	inmemdb "github.com/heroesdelapatria/portal/storage/database/inmem"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rl := logsvc.NewRollbarLogger(os.Stderr, conf, "admin")
	rl.Enable(false)
	logger = rl

	// set up validation
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up store & service
	db, err := inmemdb.Open()
	errAndDie(err)
	svc, err := recommend.NewService(recommend.NewConfig(conf), inmemdb.NewRecommendRepository(db), logger, nil)
	errAndDie(errors.Wrap(err, "creating recommendation service"))

	// start CLI
	cli := commandLine{
		svc:        svc,
		validate:   validate,
		translator: translator,
		client:     &http.Client{Timeout: 10 * time.Second},
		apiURL:     apiURL(conf),
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

// apiURL is the base URL of the API started with the same configuration.
func apiURL(conf *core.Config) string {
	addr := conf.Server.Address
	if len(addr) > 0 && addr[0] == ':' {
		addr = conf.Server.Host + addr
	}
	return "http://" + addr
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
