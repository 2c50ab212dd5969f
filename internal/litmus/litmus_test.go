package litmus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/shm-atomic/pkg/atomics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

type LitmusTestSuite struct {
	suite.Suite
	reg    *prometheus.Registry
	runner *Runner
}

func (s *LitmusTestSuite) SetupTest() {
	s.reg = prometheus.NewRegistry()
	runner, err := NewRunner(Config{Iterations: 5000, Workers: 4, Registerer: s.reg})
	s.Require().NoError(err)
	s.runner = runner
}

func (s *LitmusTestSuite) TearDownTest() {
	s.runner.Close()
}

func (s *LitmusTestSuite) TestMessagePassing() {
	res, err := s.runner.MessagePassing(context.Background())
	s.Require().NoError(err)
	s.Equal(TestMessagePassing, res.Name)
	s.Equal(5000, res.Runs)
	s.True(res.Passed(), res.String())
}

func (s *LitmusTestSuite) TestCASCounter() {
	res, err := s.runner.CASCounter(context.Background())
	s.Require().NoError(err)
	s.Equal(5000, res.Runs)
	s.True(res.Passed(), res.String())
}

func (s *LitmusTestSuite) TestRefEquivalence() {
	res, err := s.runner.RefEquivalence(context.Background())
	s.Require().NoError(err)
	s.Equal(5000, res.Runs)
	s.True(res.Passed(), res.String())
}

func (s *LitmusTestSuite) TestRunRecordsMetrics() {
	results, err := s.runner.Run(context.Background())
	s.Require().NoError(err)
	s.Len(results, 3)
	for _, res := range results {
		s.True(res.Passed(), res.String())
		runs := counterValue(s.T(), s.runner.runs.WithLabelValues(res.Name, atomics.Backend))
		s.Equal(float64(res.Runs), runs)
		violations := counterValue(s.T(), s.runner.violations.WithLabelValues(res.Name, atomics.Backend))
		s.Equal(float64(0), violations)
	}

	families, err := s.reg.Gather()
	s.Require().NoError(err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	s.Contains(names, "shm_atomic_litmus_runs_total")
	s.Contains(names, "shm_atomic_litmus_violations_total")
}

func (s *LitmusTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.runner.CASCounter(ctx)
	s.ErrorIs(err, context.Canceled)
}

func TestLitmusTestSuite(t *testing.T) {
	suite.Run(t, new(LitmusTestSuite))
}

func TestNewRunnerReusesRegisteredCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewRunner(Config{Iterations: 10, Workers: 1, Registerer: reg})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRunner(Config{Iterations: 10, Workers: 1, Registerer: reg})
	require.NoError(t, err)
	defer b.Close()
	assert.Same(t, a.runs, b.runs)
	assert.Equal(t, 2, b.cfg.Workers)

	_, err = NewRunner(Config{Iterations: 0})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, split(10, 3))
	assert.Equal(t, []int{1, 1, 0, 0}, split(2, 4))
}
