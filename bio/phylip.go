package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsePhylip parses a relaxed PHYLIP alignment: the header has the
// number of taxa and sites, the first block has a name followed by
// sequence on every line. Further blocks (interleaved format) have
// only sequence, in the order of the first block.
func ParsePhylip(rd io.Reader) (Sequences, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("empty PHYLIP file")
	}

	header := strings.Fields(lines[0])
	if len(header) != 2 {
		return nil, errors.New("PHYLIP header should contain number of taxa and sites")
	}
	ntax, err := strconv.Atoi(header[0])
	if err != nil || ntax <= 0 {
		return nil, fmt.Errorf("wrong number of taxa in PHYLIP header: %s", header[0])
	}
	nsites, err := strconv.Atoi(header[1])
	if err != nil || nsites <= 0 {
		return nil, fmt.Errorf("wrong number of sites in PHYLIP header: %s", header[1])
	}
	lines = lines[1:]
	if len(lines) < ntax {
		return nil, fmt.Errorf("expected %d sequences, found %d lines", ntax, len(lines))
	}

	seqs := make(Sequences, ntax)
	bufs := make([]strings.Builder, ntax)
	for i := 0; i < ntax; i++ {
		fields := strings.Fields(lines[i])
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected name and sequence", i+2)
		}
		seqs[i].Name = fields[0]
		for _, f := range fields[1:] {
			bufs[i].WriteString(strings.ToUpper(f))
		}
	}
	for i, line := range lines[ntax:] {
		j := i % ntax
		bufs[j].WriteString(strings.ToUpper(strings.Join(strings.Fields(line), "")))
	}
	for i := range seqs {
		seqs[i].Sequence = bufs[i].String()
		if len(seqs[i].Sequence) != nsites {
			return nil, fmt.Errorf("sequence %s has %d sites, expected %d", seqs[i].Name, len(seqs[i].Sequence), nsites)
		}
	}
	return seqs, nil
}

// Phylip returns the alignment in the sequential PHYLIP format.
func (seqs Sequences) Phylip() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d\n", len(seqs), seqs.Length())
	for _, s := range seqs {
		fmt.Fprintf(&b, "%s %s\n", s.Name, s.Sequence)
	}
	return b.String()
}
