package bio

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

var small = Sequences{
	{"s1", "ACGTACGTAC"},
	{"s2", "ACGTTCGTAC"},
	{"s3", "ACG-ACNTAC"},
	{"s4", "RCGTACGTAY"},
}

func same(tst *testing.T, seqs Sequences) {
	if len(seqs) != len(small) {
		tst.Fatalf("Expected %d sequences, got %d", len(small), len(seqs))
	}
	for i := range seqs {
		if seqs[i] != small[i] {
			tst.Errorf("Sequence %d: %v, expected %v", i, seqs[i], small[i])
		}
	}
}

func TestReadFasta(tst *testing.T) {
	seqs, err := ReadAlignment("testdata/small.fasta")
	if err != nil {
		tst.Fatal(err)
	}
	same(tst, seqs)
}

func TestReadPhylip(tst *testing.T) {
	seqs, err := ReadAlignment("testdata/small.phy")
	if err != nil {
		tst.Fatal(err)
	}
	same(tst, seqs)

	// sequential output can be read back
	seqs, err = ParsePhylip(strings.NewReader(small.Phylip()))
	if err != nil {
		tst.Fatal(err)
	}
	same(tst, seqs)

	// and so can FASTA output
	seqs, err = ParseAlignment([]byte(small.String()))
	if err != nil {
		tst.Fatal(err)
	}
	same(tst, seqs)
}

func TestBadAlignments(tst *testing.T) {
	bad := []string{
		"",
		"3 4\na ACGT\nb ACGT\n",
		"3 4\na ACGT\nb ACG\nc ACGT\n",
		"3 4\na ACGT\na ACGT\nc ACGT\n",
		"3 4\na ACGT\nb ACZT\nc ACGT\n",
		"ACGT\n>a\nACGT\n",
		">a\nACGT\n>b\nACGT\n",
	}
	for _, s := range bad {
		if _, err := ParseAlignment([]byte(s)); err == nil {
			tst.Errorf("Expected error for %q", s)
		}
	}
	if _, err := ReadAlignment("testdata/nonexistent"); !os.IsNotExist(err) {
		tst.Error("Expected not exist error, got", err)
	}
}

func TestNucleotideMask(tst *testing.T) {
	for i, c := range []byte(Nucleotides) {
		m, ok := NucleotideMask(c)
		if !ok || m != 1<<uint(i) {
			tst.Errorf("Wrong mask for %c: %v", c, m)
		}
	}
	if m, _ := NucleotideMask('r'); m != 5 {
		tst.Error("Wrong mask for r:", m)
	}
	if m, _ := NucleotideMask('-'); m != Missing {
		tst.Error("Gap is not missing:", m)
	}
	if _, ok := NucleotideMask('J'); ok {
		tst.Error("J is not a nucleotide")
	}
}

func TestPartitions(tst *testing.T) {
	parts, err := ReadPartitions("testdata/small.part")
	if err != nil {
		tst.Fatal(err)
	}
	if len(parts) != 2 {
		tst.Fatal("Expected 2 partitions, got", len(parts))
	}
	expected := [][]int{{0, 3, 6, 9}, {1, 2, 4, 5, 7, 8}}
	for i, p := range parts {
		if err := p.Check(small.Length()); err != nil {
			tst.Error(err)
		}
		sites := p.Sites()
		if len(sites) != len(expected[i]) {
			tst.Fatalf("Partition %s sites %v, expected %v", p.Name, sites, expected[i])
		}
		for j := range sites {
			if sites[j] != expected[i][j] {
				tst.Errorf("Partition %s sites %v, expected %v", p.Name, sites, expected[i])
				break
			}
		}
	}
	if parts[0].String() != "DNA, first = 1-10\\3" {
		tst.Error("Wrong string:", parts[0].String())
	}
	if err := parts[1].Check(8); err == nil {
		tst.Error("Expected out of range error")
	}
}

func TestBadPartitions(tst *testing.T) {
	bad := []string{
		"DNA first 1-10",
		"DNA = 1-10",
		"PROT, p = 1-10",
		"DNA, p = 10-1",
		"DNA, p = 0-5",
		"DNA, p = 1-5\\0",
		"DNA, p = a-5",
		"DNA, p = 1-2-3",
		"DNA, = 1-3",
	}
	for _, s := range bad {
		if _, err := ParsePartition(s); err == nil {
			tst.Errorf("Expected error for %q", s)
		}
	}
	if _, err := ParsePartitions(bytes.NewBufferString("# nothing\n\n")); err == nil {
		tst.Error("Expected error for no partitions")
	}
}
