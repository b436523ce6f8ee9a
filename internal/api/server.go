// A small gin HTTP server that lets the
// external simulator ask for a plan of a
// snapshot directly instead of going through
// the document directories. It also exposes
// the planner counters for Prometheus.
package api

import (
	"errors"
	"net/http"

	"github.com/amsen20/lotos/alg"
	"github.com/amsen20/lotos/internal/connector"
	"github.com/amsen20/lotos/internal/ilp"
	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/internal/planner"
	"github.com/amsen20/lotos/logging"
	"github.com/amsen20/lotos/statistics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logging.Get()

type Server struct {
	router   *gin.Engine
	solver   ilp.Solver
	options  planner.Options
	registry *prometheus.Registry
}

type planResponse struct {
	Instance string           `json:"instance"`
	Coverage int              `json:"coverage"`
	Cost     float64          `json:"cost"`
	Stage1   model.Assignment `json:"stage_1"`
	Stage2   model.Assignment `json:"stage_2"`
	Unserved []int            `json:"unserved"`
}

func New(solver ilp.Solver, options planner.Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		solver:   solver,
		options:  options,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(statistics.Collector(), collectors.NewGoCollector())

	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.router.POST("/plan", s.plan)
}

func (s *Server) plan(ctx *gin.Context) {
	instance := ctx.DefaultQuery("instance", uuid.New().String())

	snapshot := model.NewSnapshot()
	if err := ctx.ShouldBindJSON(snapshot); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c := connector.NewConstantConnector(snapshot)
	report, err := planner.New(c, s.solver, s.options).Run(ctx.Request.Context(), instance)
	if err != nil {
		log.Err(err).Str("instance", instance).Msg("could not plan")
		ctx.JSON(statusOf(err), gin.H{"instance": instance, "error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, planResponse{
		Instance: instance,
		Coverage: report.Cost.Coverage,
		Cost:     report.Cost.Objective,
		Stage1:   report.Coverage.Assignment,
		Stage2:   report.Cost.Assignment,
		Unserved: report.Unserved,
	})
}

func statusOf(err error) int {
	var inputError *connector.InputError
	switch {
	case errors.As(err, &inputError):
		return http.StatusBadRequest
	case errors.Is(err, alg.ErrBatchTooLarge), errors.Is(err, alg.ErrPlanningFailed):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(address string) error {
	log.Info().Str("address", address).Msg("serving plans")

	return s.router.Run(address)
}
