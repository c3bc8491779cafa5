package main

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/phylem/emtree/checkpoint"
	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/nmodel"
	"github.com/phylem/emtree/optimize"
	"github.com/phylem/emtree/optimize/lbfgsb"
)

// runSettings stores everything needed for a run. It is created
// from the command line parameters (global variables).
type runSettings struct {
	alignment  string
	partitions string

	groups     int
	assignment []int

	schedule    em.Schedule
	classifier  em.Classifier
	iterations  int
	epsilon     float64
	pseudocount float64

	attr      nmodel.Attributes
	method    string
	maximizer optimize.Maximizer

	threads int
	seed    int64

	checkpoint        string
	checkpointSeconds float64

	registerer prometheus.Registerer
}

// newRunSettings creates runSettings from the command line. Model
// attributes are read from the attribute file first, command line
// flags override them.
func newRunSettings() (*runSettings, error) {
	s := &runSettings{
		alignment:  *alignmentFileName,
		partitions: *partitionFileName,

		groups:      *nGroups,
		iterations:  *iterations,
		epsilon:     *epsilon,
		pseudocount: *pseudocount,
		method:      *method,

		checkpoint:        *checkpointF,
		checkpointSeconds: *checkpointSeconds,
	}

	var err error
	if s.schedule, err = em.ParseSchedule(*schedule); err != nil {
		return nil, err
	}
	if s.classifier, err = em.ParseClassifier(*classifier); err != nil {
		return nil, err
	}
	if s.maximizer, err = getMaximizer(s.method); err != nil {
		return nil, err
	}

	s.attr = nmodel.DefaultAttributes()
	if *attrFileName != "" {
		if s.attr, err = readAttributes(*attrFileName); err != nil {
			return nil, err
		}
	}
	if *rateModel != "" {
		s.attr.RateModel = *rateModel
	}
	if *nCategories > 0 {
		s.attr.Categories = *nCategories
	}
	if *nThreads > 0 {
		s.attr.Threads = *nThreads
	}
	if *seed != -1 {
		s.attr.Seed = *seed
	}
	if s.attr.Seed == 0 {
		s.attr.Seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	s.seed = s.attr.Seed
	s.threads = s.attr.Threads

	if *assignmentFileName != "" {
		if s.assignment, err = readAssignment(*assignmentFileName); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// checkpointKey identifies the inputs of a run. Runs differing in
// data, model, starting point or optimizer never share a checkpoint.
func (s *runSettings) checkpointKey() []byte {
	start := "groups=" + strconv.Itoa(s.groups)
	if s.assignment != nil {
		start = "assignment=" + fmt.Sprint(s.assignment)
	}
	return checkpoint.Key(
		s.alignment,
		s.partitions,
		s.schedule.String(),
		s.classifier.String(),
		start,
		s.attr.RateModel,
		strconv.Itoa(s.attr.Categories),
		strconv.FormatFloat(s.epsilon, 'g', -1, 64),
		strconv.FormatFloat(s.pseudocount, 'g', -1, 64),
		s.method,
		strconv.FormatInt(s.seed, 10),
	)
}

// getMaximizer returns the optimization method by its name.
func getMaximizer(method string) (optimize.Maximizer, error) {
	switch method {
	case "brent":
		return optimize.NewCoordinate(), nil
	case "simplex":
		return optimize.NewSimplex(), nil
	case "lbfgsb":
		return lbfgsb.New(), nil
	}
	return nil, fmt.Errorf("Unknown optimization method: %s", method)
}

// readAttributes reads model attributes from a YAML file. Missing
// values are set to defaults.
func readAttributes(fn string) (nmodel.Attributes, error) {
	attr := nmodel.DefaultAttributes()
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return attr, err
	}
	if err := yaml.Unmarshal(b, &attr); err != nil {
		return attr, fmt.Errorf("%s: %v", fn, err)
	}
	return attr, nil
}

// readAssignment reads group numbers separated by white space.
func readAssignment(fn string) ([]int, error) {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: empty assignment", fn)
	}
	a := make([]int, len(fields))
	for i, f := range fields {
		if a[i], err = strconv.Atoi(f); err != nil {
			return nil, fmt.Errorf("%s: wrong group %q", fn, f)
		}
	}
	return a, nil
}
