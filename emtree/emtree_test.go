package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/nmodel"
)

func TestReadAttributes(tst *testing.T) {
	attr, err := readAttributes("testdata/attr.yaml")
	if err != nil {
		tst.Fatal(err)
	}
	expected := nmodel.Attributes{Seed: 42, RateModel: "none", Categories: 6, Threads: 2}
	if attr != expected {
		tst.Errorf("Wrong attributes: %+v", attr)
	}
	if _, err := readAttributes("testdata/assign.txt"); err == nil {
		tst.Error("Expected error for non-YAML file")
	}
}

func TestReadAssignment(tst *testing.T) {
	a, err := readAssignment("testdata/assign.txt")
	if err != nil {
		tst.Fatal(err)
	}
	expected := []int{0, 1, 1, 2, 0}
	if len(a) != len(expected) {
		tst.Fatal("Wrong assignment:", a)
	}
	for i := range a {
		if a[i] != expected[i] {
			tst.Fatal("Wrong assignment:", a)
		}
	}
	if _, err := readAssignment("testdata/attr.yaml"); err == nil {
		tst.Error("Expected error for a wrong assignment")
	}
}

func TestGetMaximizer(tst *testing.T) {
	for _, m := range []string{"brent", "simplex", "lbfgsb"} {
		if _, err := getMaximizer(m); err != nil {
			tst.Error(err)
		}
	}
	if _, err := getMaximizer("mh"); err == nil {
		tst.Error("Expected error for unknown method")
	}
}

func TestOutput(tst *testing.T) {
	dir := tst.TempDir()
	groups := []em.Group{{Tree: "(a,b,c);"}, {Tree: "(a,c,b);"}}
	fn := filepath.Join(dir, "trees.nwk")
	if err := writeTrees(fn, groups); err != nil {
		tst.Fatal(err)
	}
	if b, err := os.ReadFile(fn); err != nil || string(b) != "(a,b,c);\n(a,c,b);\n" {
		tst.Errorf("Wrong trees file %q (%v)", b, err)
	}

	prefix := filepath.Join(dir, "run")
	posterior := [][]float64{{1, 0}, {0.3, 0.7}, {0, 1}}
	if err := writePlots(prefix, []float64{-100, -90, -89.5}, posterior); err != nil {
		tst.Fatal(err)
	}
	for _, suffix := range []string{"-lnl.png", "-posterior.png"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			tst.Error(err)
		}
	}
	if err := writePlots(prefix, nil, nil); err == nil {
		tst.Error("Expected error for empty posterior")
	}
}

func TestCheckpointKey(tst *testing.T) {
	base := func() *runSettings {
		return &runSettings{
			alignment:   "ali.phy",
			partitions:  "ali.part",
			groups:      2,
			assignment:  []int{0, 1, 1, 2, 0},
			schedule:    em.ModelParameters,
			classifier:  em.MAP,
			epsilon:     0.01,
			pseudocount: 1,
			attr:        nmodel.DefaultAttributes(),
			method:      "brent",
			seed:        1,
		}
	}
	key := string(base().checkpointKey())
	if key != string(base().checkpointKey()) {
		tst.Fatal("Checkpoint key is not deterministic")
	}

	changes := map[string]func(s *runSettings){
		"assignment":  func(s *runSettings) { s.assignment = []int{0, 1, 2, 2, 0} },
		"groups":      func(s *runSettings) { s.assignment = nil },
		"rates":       func(s *runSettings) { s.attr.RateModel = nmodel.RateNone },
		"categories":  func(s *runSettings) { s.attr.Categories = 8 },
		"pseudocount": func(s *runSettings) { s.pseudocount = 0 },
		"epsilon":     func(s *runSettings) { s.epsilon = 0.1 },
		"method":      func(s *runSettings) { s.method = "simplex" },
		"schedule":    func(s *runSettings) { s.schedule = em.TopologySearch },
		"seed":        func(s *runSettings) { s.seed = 2 },
	}
	for name, change := range changes {
		s := base()
		change(s)
		if string(s.checkpointKey()) == key {
			tst.Errorf("Changing %s does not change the checkpoint key", name)
		}
	}

	// with an assignment the group count flag is irrelevant
	s := base()
	s.groups = 5
	if string(s.checkpointKey()) != key {
		tst.Error("Group count changes the key of a run with an assignment")
	}
}

func TestRun(tst *testing.T) {
	if testing.Short() {
		tst.Skip("skipping run in short mode")
	}
	s := &runSettings{
		alignment:   "../nmodel/testdata/toy.phy",
		partitions:  "../nmodel/testdata/toy.part",
		assignment:  []int{0, 0, 0, 0, 0, 1, 0, 1, 1, 1, 2, 2, 2, 2, 2},
		schedule:    em.ModelParameters,
		classifier:  em.MAP,
		iterations:  10,
		epsilon:     0.01,
		pseudocount: 1,
		attr:        nmodel.DefaultAttributes(),
		method:      "brent",
		seed:        1,
		checkpoint:  filepath.Join(tst.TempDir(), "checkpoint.db"),
	}
	s.attr.Seed = 1
	var err error
	if s.maximizer, err = getMaximizer(s.method); err != nil {
		tst.Fatal(err)
	}
	summary, err := run(s)
	if err != nil {
		tst.Fatal(err)
	}
	if len(summary.Trace) != summary.Iterations || !summary.Converged && summary.Iterations != 10 {
		tst.Errorf("Wrong run: converged=%v, %d iterations, trace %v", summary.Converged, summary.Iterations, summary.Trace)
	}
	truth := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2}
	for i := range truth {
		if summary.Assignment[i] != truth[i] {
			tst.Fatal("Wrong assignment:", summary.Assignment)
		}
	}
	if len(summary.Posterior) != 15 || len(summary.Groups) != 3 || summary.Loci[14] != "locus15" {
		tst.Error("Wrong summary")
	}

	// the finished run is loaded from the checkpoint
	again, err := run(s)
	if err != nil {
		tst.Fatal(err)
	}
	if again.Run != summary.Run || len(again.Trace) != 0 {
		tst.Errorf("Run was not restored: %s vs %s, trace %v", again.Run, summary.Run, again.Trace)
	}
	if summary.Converged && again.Likelihood != summary.Likelihood {
		tst.Errorf("Restored likelihood %v, expected %v", again.Likelihood, summary.Likelihood)
	}

	// another starting assignment does not resume the checkpoint
	other := *s
	other.assignment = truth
	fresh, err := run(&other)
	if err != nil {
		tst.Fatal(err)
	}
	if fresh.Run == summary.Run || len(fresh.Trace) == 0 {
		tst.Errorf("Run with another assignment was restored: %s, trace %v", fresh.Run, fresh.Trace)
	}
}
