/*
Emtree clusters loci of a multi-locus alignment into groups, every
group having its own tree. The assignment of loci to groups and the
trees are estimated with the expectation-maximization algorithm.

The basic usage of emtree looks like this:

	emtree --groups 3 alignment.phy partitions.txt

, where partitions are in the RAxML format, e.g.

	DNA, gene1 = 1-500
	DNA, gene2 = 501-1200

To see all the options run:

	emtree -h
*/
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = "branch: " + gitbranch + ", revision: " + githash + ", build time: " + buildstamp

// Logger settings.
var log = logging.MustGetLogger("emtree")
var formatter = logging.MustStringFormatter(`%{message}`)

// loggers lists all the modules with their own log level.
var loggers = []string{"emtree", "em", "workpool", "nmodel", "optimize", "checkpoint"}

// command-line options
var (
	// application
	app = kingpin.New("emtree", "clustering of loci by their trees with the EM algorithm").Version(version)

	// input
	alignmentFileName = app.Arg("alignment", "sequence alignment (PHYLIP or FASTA)").Required().ExistingFile()
	partitionFileName = app.Arg("partitions", "partitions in the RAxML format").Required().ExistingFile()

	// EM
	nGroups            = app.Flag("groups", "number of groups for a random starting assignment").Short('k').Default("2").Int()
	assignmentFileName = app.Flag("assignment", "starting assignment, a group number for every locus (overrides -groups)").ExistingFile()
	schedule           = app.Flag("schedule", "M-step schedule "+
		"(brlen: branch lengths, "+
		"param: branch lengths and model parameters, "+
		"tree: topology search, "+
		"full: topology search and model parameters)").
		Default("param").Enum("brlen", "param", "tree", "full")
	classifier = app.Flag("classifier", "C-step classifier "+
		"(map: maximum posterior, "+
		"impute: sampling from the posterior, "+
		"anneal: simulated annealing)").
		Default("map").Enum("map", "impute", "anneal")
	iterations  = app.Flag("iter", "maximum number of EM iterations").Default("100").Int()
	epsilon     = app.Flag("epsilon", "log-likelihood improvement threshold").Default("0.01").Float64()
	pseudocount = app.Flag("pseudocount", "pseudocount for group proportions").Default("1").Float64()

	// model
	attrFileName = app.Flag("attr", "YAML file with model attributes (seed, rates, categories, threads)").ExistingFile()
	rateModel    = app.Flag("rates", "rate variation among sites (gamma or none)").Enum("gamma", "none")
	nCategories  = app.Flag("ncat", "number of discrete gamma categories").Int()
	method       = app.Flag("method", "optimization method "+
		"(brent: coordinate ascent with Brent's method, "+
		"simplex: downhill simplex, "+
		"lbfgsb: limited-memory Broyden–Fletcher–Goldfarb–Shanno with bounding constraints)").
		Default("brent").Enum("brent", "simplex", "lbfgsb")

	// technical
	nThreads          = app.Flag("nt", "number of threads to use").Int()
	seed              = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	cpuProfile        = app.Flag("cpuprofile", "write cpu profile to file").String()
	checkpointF       = app.Flag("checkpoint", "checkpoint database, the run is continued if it has a checkpoint").String()
	checkpointSeconds = app.Flag("checkpoint-seconds", "minimum time between checkpoints").Default("60").Float64()
	metricsAddr       = app.Flag("metrics", "serve prometheus metrics on this address, e.g. :9090").String()

	// output
	outLogF    = app.Flag("log", "write log to a file").String()
	outTreeF   = app.Flag("tree", "write group trees to a file").String()
	plotPrefix = app.Flag("plot", "plot the likelihood trace and the posterior to PREFIX-lnl.png and PREFIX-posterior.png").PlaceHolder("PREFIX").String()
	logLevel   = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

// serveMetrics starts the metrics endpoint and returns the registry.
func serveMetrics(addr string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server:", err)
		}
	}()
	log.Infof("Serving metrics on %s/metrics", addr)
	return reg
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, module := range loggers {
		logging.SetLevel(level, module)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	settings, err := newRunSettings()
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Random seed=%v", settings.seed)

	runtime.GOMAXPROCS(settings.threads)
	effectiveNThreads := runtime.GOMAXPROCS(0)
	settings.threads = effectiveNThreads
	log.Infof("Using threads: %d.", effectiveNThreads)

	if *metricsAddr != "" {
		settings.registerer = serveMetrics(*metricsAddr)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	startTime := time.Now()
	summary, err := run(settings)
	if err != nil {
		log.Fatal(err)
	}
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = settings.seed
	summary.TotalTime = time.Since(startTime).Seconds()
	log.Noticef("Running time: %v", time.Since(startTime))

	if *outTreeF != "" {
		if err := writeTrees(*outTreeF, summary.Groups); err != nil {
			log.Error("Error writing trees:", err)
		}
	}

	if *plotPrefix != "" {
		if err := writePlots(*plotPrefix, summary.Trace, summary.Posterior); err != nil {
			log.Error("Error plotting:", err)
		}
	}

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
