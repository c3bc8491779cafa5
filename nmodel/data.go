// Package nmodel implements nucleotide substitution models (GTR with
// gamma distributed rates) over a shared tree with one set of
// parameters per partition.
package nmodel

import (
	"errors"
	"fmt"

	"github.com/op/go-logging"

	"github.com/phylem/emtree/bio"
)

var log = logging.MustGetLogger("nmodel")

const (
	// minFreq is the lower bound of empirical frequencies.
	minFreq = 0.01
)

// locus is a compressed alignment of a single partition.
type locus struct {
	name string
	// patterns[k][t] is the state mask of taxon t in pattern k.
	patterns [][]uint8
	weights  []float64
	nSites   int
	freqs    []float64
}

// Data stores the alignment split into loci. It is never modified
// after creation and is shared by all the models.
type Data struct {
	names []string
	taxa  map[string]int
	loci  []*locus
}

// NewData compresses the alignment into site patterns for every
// partition.
func NewData(seqs bio.Sequences, parts []bio.Partition) (*Data, error) {
	if err := seqs.Check(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, errors.New("no partitions")
	}
	data := &Data{
		names: seqs.Names(),
		taxa:  make(map[string]int, len(seqs)),
		loci:  make([]*locus, len(parts)),
	}
	for i, name := range data.names {
		data.taxa[name] = i
	}

	masks := make([][]uint8, len(seqs))
	for t, seq := range seqs {
		masks[t] = make([]uint8, len(seq.Sequence))
		for s := range seq.Sequence {
			m, ok := bio.NucleotideMask(seq.Sequence[s])
			if !ok {
				return nil, fmt.Errorf("%s: unknown character %q at site %d", seq.Name, seq.Sequence[s], s+1)
			}
			masks[t][s] = m
		}
	}

	length := seqs.Length()
	for i, p := range parts {
		if err := p.Check(length); err != nil {
			return nil, err
		}
		data.loci[i] = compress(p.Name, p.Sites(), masks)
		log.Debugf("locus %s: %d sites, %d patterns", p.Name, data.loci[i].nSites, len(data.loci[i].patterns))
	}
	log.Infof("Read %d sequences, %d sites, %d loci", len(seqs), length, len(parts))
	return data, nil
}

// ReadData reads the alignment and the partition files.
func ReadData(alignment, partitions string) (*Data, error) {
	seqs, err := bio.ReadAlignment(alignment)
	if err != nil {
		return nil, err
	}
	parts, err := bio.ReadPartitions(partitions)
	if err != nil {
		return nil, err
	}
	return NewData(seqs, parts)
}

func compress(name string, sites []int, masks [][]uint8) *locus {
	loc := &locus{
		name:   name,
		nSites: len(sites),
		freqs:  make([]float64, bio.NStates),
	}
	index := make(map[string]int)
	col := make([]uint8, len(masks))
	for _, s := range sites {
		for t := range masks {
			col[t] = masks[t][s]
			loc.countStates(col[t])
		}
		key := string(col)
		k, ok := index[key]
		if !ok {
			k = len(loc.patterns)
			index[key] = k
			loc.patterns = append(loc.patterns, append([]uint8(nil), col...))
			loc.weights = append(loc.weights, 0)
		}
		loc.weights[k]++
	}

	sum := 0.0
	for i := range loc.freqs {
		sum += loc.freqs[i]
	}
	for i := range loc.freqs {
		if sum > 0 {
			loc.freqs[i] /= sum
		} else {
			loc.freqs[i] = 1 / float64(bio.NStates)
		}
	}
	normalizeFloor(loc.freqs, minFreq)
	return loc
}

// countStates adds a character to the state counts, ambiguous
// characters are spread between their states. Missing data is
// ignored.
func (loc *locus) countStates(mask uint8) {
	if mask == bio.Missing || mask == 0 {
		return
	}
	n := 0
	for i := 0; i < bio.NStates; i++ {
		if mask&(1<<uint(i)) != 0 {
			n++
		}
	}
	for i := 0; i < bio.NStates; i++ {
		if mask&(1<<uint(i)) != 0 {
			loc.freqs[i] += 1 / float64(n)
		}
	}
}

// normalizeFloor raises all values to at least min and makes them
// sum to one.
func normalizeFloor(v []float64, min float64) {
	sum := 0.0
	for i := range v {
		if v[i] < min {
			v[i] = min
		}
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

// NLoci returns the number of loci.
func (data *Data) NLoci() int {
	return len(data.loci)
}

// Names returns names of the sequences.
func (data *Data) Names() []string {
	return data.names
}

// LocusName returns the partition name of locus i.
func (data *Data) LocusName(i int) string {
	return data.loci[i].name
}

// LocusLength returns the number of sites of locus i.
func (data *Data) LocusLength(i int) int {
	return data.loci[i].nSites
}
