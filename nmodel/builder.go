package nmodel

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/phylem/emtree/em"
	"github.com/phylem/emtree/optimize"
)

// Rate heterogeneity models.
const (
	RateGamma = "gamma"
	RateNone  = "none"
)

// Attributes are the settings shared by all the models.
type Attributes struct {
	// Seed initializes random starting trees.
	Seed int64 `yaml:"seed"`
	// RateModel is either gamma or none.
	RateModel string `yaml:"rates"`
	// Categories is the number of discrete gamma categories.
	Categories int `yaml:"categories"`
	// Threads is the number of worker threads.
	Threads int `yaml:"threads"`
}

// DefaultAttributes returns GTR+G4.
func DefaultAttributes() Attributes {
	return Attributes{
		RateModel:  RateGamma,
		Categories: 4,
	}
}

func (a Attributes) check() error {
	switch a.RateModel {
	case RateGamma:
		if a.Categories < 1 {
			return fmt.Errorf("wrong number of categories: %d", a.Categories)
		}
	case RateNone:
	default:
		return fmt.Errorf("unknown rate model: %s", a.RateModel)
	}
	if a.Threads < 0 {
		return errors.New("negative number of threads")
	}
	return nil
}

func (a Attributes) nCat() int {
	if a.RateModel == RateNone {
		return 1
	}
	return a.Categories
}

var _ em.ModelBuilder = (*Builder)(nil)

// Builder creates models over subsets of loci of the data.
type Builder struct {
	data *Data
	attr Attributes
	// Maximizer is used to fit all the models.
	Maximizer optimize.Maximizer
}

// NewBuilder creates a builder using coordinate ascent.
func NewBuilder(data *Data, attr Attributes) (*Builder, error) {
	if err := attr.check(); err != nil {
		return nil, err
	}
	if len(data.names) < 3 {
		return nil, errors.New("at least three sequences are required")
	}
	return &Builder{
		data:      data,
		attr:      attr,
		Maximizer: optimize.NewCoordinate(),
	}, nil
}

func (b *Builder) NLoci() int {
	return b.data.NLoci()
}

// Build returns a model with the default parameters. Unless a tree
// is set, a stepwise addition tree is built on first use; it depends
// only on the seed and the loci.
func (b *Builder) Build(loci []int) (em.Model, error) {
	return b.New(loci)
}

// New is Build returning the concrete type.
func (b *Builder) New(loci []int) (*Model, error) {
	seed := b.attr.Seed
	for _, l := range loci {
		seed = seed*31 + int64(l) + 1
	}
	return newModel(b.data, loci, b.attr.nCat(), b.Maximizer, rand.New(rand.NewSource(seed)))
}
