// Package codon holds the standard genetic code used to classify the
// amino-acid effect of a substitution.
package codon

// Stop is the symbol the table uses for the three stop codons.
const Stop = "*"

var standard = map[string]string{
	"TTT": "F", "TTC": "F", "TTA": "L", "TTG": "L",
	"CTT": "L", "CTC": "L", "CTA": "L", "CTG": "L",
	"ATT": "I", "ATC": "I", "ATA": "I", "ATG": "M",
	"GTT": "V", "GTC": "V", "GTA": "V", "GTG": "V",
	"TCT": "S", "TCC": "S", "TCA": "S", "TCG": "S",
	"CCT": "P", "CCC": "P", "CCA": "P", "CCG": "P",
	"ACT": "T", "ACC": "T", "ACA": "T", "ACG": "T",
	"GCT": "A", "GCC": "A", "GCA": "A", "GCG": "A",
	"TAT": "Y", "TAC": "Y", "TAA": Stop, "TAG": Stop,
	"CAT": "H", "CAC": "H", "CAA": "Q", "CAG": "Q",
	"AAT": "N", "AAC": "N", "AAA": "K", "AAG": "K",
	"GAT": "D", "GAC": "D", "GAA": "E", "GAG": "E",
	"TGT": "C", "TGC": "C", "TGA": Stop, "TGG": "W",
	"CGT": "R", "CGC": "R", "CGA": "R", "CGG": "R",
	"AGT": "S", "AGC": "S", "AGA": "R", "AGG": "R",
	"GGT": "G", "GGC": "G", "GGA": "G", "GGG": "G",
}

// Translate returns the amino-acid symbol for an upper-case codon. ok is false
// for anything that is not one of the 64 ACGT triples.
func Translate(codon string) (aa string, ok bool) {
	aa, ok = standard[codon]
	return aa, ok
}

func IsStop(codon string) bool {
	aa, ok := standard[codon]
	return ok && aa == Stop
}

// Len is the number of entries in the table.
func Len() int {
	return len(standard)
}
