package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/heroesdelapatria/portal/apps/api/echo"
	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
	logsvc "github.com/heroesdelapatria/portal/services/logger"
	metricsvc "github.com/heroesdelapatria/portal/services/metrics"
	schedulersvc "github.com/heroesdelapatria/portal/services/scheduler"
	inmemdb "github.com/heroesdelapatria/portal/storage/database/inmem"
)

type MLLoggerParam struct {
	dig.In
	Logger core.Logger `name:"mlLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf, "api")
	logger.Enable(!conf.Debug)
	return logger
}

func newMLLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf, "ml")
	logger.Enable(!conf.Debug)
	return logger
}

func newRecommendRepository(loggerParam MLLoggerParam) recommend.Repository {
	db, err := inmemdb.Open()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening in-memory store: %v", err), err)
	}
	return inmemdb.NewRecommendRepository(db)
}

func newRecommendService(
	conf *core.Config,
	repo recommend.Repository,
	loggerParam MLLoggerParam,
	metrics *metricsvc.PrometheusRecorder,
) (*recommend.Service, error) {
	svc, err := recommend.NewService(recommend.NewConfig(conf), repo, loggerParam.Logger, metrics)
	if err != nil {
		return nil, errors.Wrap(err, "creating recommendation service")
	}
	return svc, nil
}

func newScheduler(conf *core.Config, loggerParam MLLoggerParam, svc *recommend.Service) (*schedulersvc.Scheduler, error) {
	s := schedulersvc.NewScheduler(loggerParam.Logger)
	if err := schedulersvc.RegisterCacheSweep(s, conf.Recommend.CacheSweepSchedule, svc); err != nil {
		return nil, errors.Wrap(err, "registering cache sweep")
	}
	return s, nil
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Svc        *recommend.Service
	Metrics    *metricsvc.PrometheusRecorder
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		RecommendSvc: p.Svc,
		Metrics:      p.Metrics,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newMLLogger, dig.Name("mlLogger")))
	must(c.Provide(newRecommendRepository))
	must(c.Provide(metricsvc.NewPrometheusRecorder))
	must(c.Provide(newRecommendService))
	must(c.Provide(newScheduler))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
