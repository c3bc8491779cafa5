// Package bio provides sequence alignments, their parsing and
// nucleotide state encoding.
package bio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sequence is a type which is intended for storing nucleotide
// sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences. E.g. a sequence alignment.
type Sequences []Sequence

// ParseFasta parses FASTA sequences from a reader.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: strings.TrimSpace(line[1:])}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o prefix")
			}
			line = strings.ToUpper(strings.Replace(line, " ", "", -1))
			seqs[len(seqs)-1].Sequence += line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, errors.New("no sequences found")
	}
	return
}

// ParseAlignment parses an alignment in the PHYLIP format, and if
// this fails, in the FASTA format. The result is checked to be a
// valid alignment.
func ParseAlignment(data []byte) (Sequences, error) {
	seqs, perr := ParsePhylip(bytes.NewReader(data))
	if perr != nil {
		var ferr error
		seqs, ferr = ParseFasta(bytes.NewReader(data))
		if ferr != nil {
			return nil, fmt.Errorf("cannot parse alignment as PHYLIP (%v) or FASTA (%v)", perr, ferr)
		}
	}
	if err := seqs.Check(); err != nil {
		return nil, err
	}
	return seqs, nil
}

// ReadAlignment reads an alignment file, see ParseAlignment.
func ReadAlignment(fn string) (Sequences, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	seqs, err := ParseAlignment(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", fn, err)
	}
	return seqs, nil
}

// Length returns the alignment length.
func (seqs Sequences) Length() int {
	if len(seqs) == 0 {
		return 0
	}
	return len(seqs[0].Sequence)
}

// Check tests that all sequences have the same length, unique names
// and valid nucleotide characters.
func (seqs Sequences) Check() error {
	if len(seqs) < 3 {
		return fmt.Errorf("at least three sequences are required, found %d", len(seqs))
	}
	names := make(map[string]bool, len(seqs))
	l := seqs.Length()
	for _, s := range seqs {
		if names[s.Name] {
			return fmt.Errorf("duplicate sequence name: %s", s.Name)
		}
		names[s.Name] = true
		if len(s.Sequence) != l {
			return fmt.Errorf("sequence %s length %d differs from %d", s.Name, len(s.Sequence), l)
		}
		for i := 0; i < len(s.Sequence); i++ {
			if _, ok := NucleotideMask(s.Sequence[i]); !ok {
				return fmt.Errorf("sequence %s: unknown character %q at %d", s.Name, s.Sequence[i], i+1)
			}
		}
	}
	return nil
}

// Names returns the sequence names.
func (seqs Sequences) Names() []string {
	res := make([]string, len(seqs))
	for i, s := range seqs {
		res[i] = s.Name
	}
	return res
}

// Wrap inputs a string and wraps it so string length is n characters
// or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() (s string) {
	s = ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
	return
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	if s == "" {
		return
	}
	return s[:len(s)-1]
}
