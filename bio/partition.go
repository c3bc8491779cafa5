package bio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Range is an inclusive 1-based range of alignment columns with a
// step, e.g. 3-300\3.
type Range struct {
	Start, End, Step int
}

// Partition is a named set of alignment columns, defined in the RAxML
// format: "DNA, name = 1-100, 201-300\3".
type Partition struct {
	Type   string
	Name   string
	Ranges []Range
}

// ParsePartition parses a single partition definition.
func ParsePartition(s string) (p Partition, err error) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return p, fmt.Errorf("partition %q: missing '='", s)
	}
	head := strings.Split(s[:eq], ",")
	if len(head) != 2 {
		return p, fmt.Errorf("partition %q: expected 'TYPE, name'", s)
	}
	p.Type = strings.ToUpper(strings.TrimSpace(head[0]))
	p.Name = strings.TrimSpace(head[1])
	if p.Type != "DNA" {
		return p, fmt.Errorf("partition %q: unsupported data type %s", s, p.Type)
	}
	if p.Name == "" {
		return p, fmt.Errorf("partition %q: empty name", s)
	}

	for _, rs := range strings.Split(s[eq+1:], ",") {
		r, err := parseRange(strings.TrimSpace(rs))
		if err != nil {
			return p, fmt.Errorf("partition %s: %v", p.Name, err)
		}
		p.Ranges = append(p.Ranges, r)
	}
	return p, nil
}

func parseRange(s string) (r Range, err error) {
	r.Step = 1
	if i := strings.Index(s, "\\"); i >= 0 {
		if r.Step, err = strconv.Atoi(strings.TrimSpace(s[i+1:])); err != nil || r.Step < 1 {
			return r, fmt.Errorf("wrong step in range %q", s)
		}
		s = s[:i]
	}
	bounds := strings.Split(s, "-")
	switch len(bounds) {
	case 1:
		if r.Start, err = strconv.Atoi(strings.TrimSpace(bounds[0])); err != nil {
			return r, fmt.Errorf("wrong range %q", s)
		}
		r.End = r.Start
	case 2:
		if r.Start, err = strconv.Atoi(strings.TrimSpace(bounds[0])); err != nil {
			return r, fmt.Errorf("wrong range start %q", s)
		}
		if r.End, err = strconv.Atoi(strings.TrimSpace(bounds[1])); err != nil {
			return r, fmt.Errorf("wrong range end %q", s)
		}
	default:
		return r, fmt.Errorf("wrong range %q", s)
	}
	if r.Start < 1 || r.End < r.Start {
		return r, fmt.Errorf("wrong range %q", s)
	}
	return r, nil
}

// Sites returns 0-based column indices of the partition.
func (p Partition) Sites() []int {
	var res []int
	for _, r := range p.Ranges {
		for i := r.Start; i <= r.End; i += r.Step {
			res = append(res, i-1)
		}
	}
	return res
}

// Check tests that the partition fits into an alignment of the given
// length.
func (p Partition) Check(length int) error {
	for _, r := range p.Ranges {
		if r.End > length {
			return fmt.Errorf("partition %s: column %d is beyond alignment length %d", p.Name, r.End, length)
		}
	}
	return nil
}

func (p Partition) String() string {
	rs := make([]string, len(p.Ranges))
	for i, r := range p.Ranges {
		rs[i] = fmt.Sprintf("%d-%d", r.Start, r.End)
		if r.Step != 1 {
			rs[i] += "\\" + strconv.Itoa(r.Step)
		}
	}
	return fmt.Sprintf("%s, %s = %s", p.Type, p.Name, strings.Join(rs, ", "))
}

// ParsePartitions parses partition definitions, one per line. Empty
// lines and lines starting with # are skipped.
func ParsePartitions(rd io.Reader) ([]Partition, error) {
	var res []Partition
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		p, err := ParsePartition(line)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("no partitions found")
	}
	return res, nil
}

// ReadPartitions reads partition definitions from a file.
func ReadPartitions(fn string) ([]Partition, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePartitions(f)
}
