package bio

// Nucleotides in the state order used everywhere: A, C, G, T.
const Nucleotides = "ACGT"

// NStates is the number of nucleotide states.
const NStates = 4

// Missing is the mask of a gap or a completely unknown state.
const Missing uint8 = 0xf

var nucleotideMasks [256]uint8

func init() {
	masks := map[byte]uint8{
		'A': 1, 'C': 2, 'G': 4, 'T': 8, 'U': 8,
		'R': 1 | 4, 'Y': 2 | 8, 'S': 2 | 4, 'W': 1 | 8,
		'K': 4 | 8, 'M': 1 | 2,
		'B': 2 | 4 | 8, 'D': 1 | 4 | 8, 'H': 1 | 2 | 8, 'V': 1 | 2 | 4,
		'N': Missing, 'X': Missing, '?': Missing, '-': Missing, '.': Missing,
	}
	for c, m := range masks {
		nucleotideMasks[c] = m
		if c >= 'A' && c <= 'Z' {
			nucleotideMasks[c-'A'+'a'] = m
		}
	}
}

// NucleotideMask returns a bit mask of possible states (A=1, C=2,
// G=4, T=8) for an IUPAC character.
func NucleotideMask(c byte) (uint8, bool) {
	m := nucleotideMasks[c]
	return m, m != 0
}
