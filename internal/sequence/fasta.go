// Package sequence reads FASTA input and provides the small set of sequence
// utilities the simulators and the scanner share.
package sequence

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// ErrNoSequence is returned when input contains no usable sequence data.
var ErrNoSequence = errors.New("no sequence found in FASTA input")

type Record struct {
	Header   string `json:"header"`
	Sequence string `json:"sequence"`
}

func (r Record) Len() int {
	return len(r.Sequence)
}

// ReadFASTA parses every record in r. Sequences are upper-cased with all
// whitespace removed; other characters are kept so callers can decide how
// strict to be.
func ReadFASTA(r io.Reader) ([]Record, error) {
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(r, template))

	var records []Record
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		header := s.Name()
		if desc := s.Description(); desc != "" {
			header += " " + desc
		}
		records = append(records, Record{
			Header:   header,
			Sequence: strings.ToUpper(strings.Join(strings.Fields(string(s.Seq)), "")),
		})
	}
	if err := sc.Error(); err != nil {
		// Text before the first header means no record was ever started.
		if len(records) == 0 {
			return nil, fmt.Errorf("read fasta: %w: %w", ErrNoSequence, err)
		}
		return nil, fmt.Errorf("read fasta: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoSequence
	}
	return records, nil
}

// RecordMap indexes records by header. Later duplicates replace earlier ones.
func RecordMap(records []Record) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		out[rec.Header] = rec.Sequence
	}
	return out
}

// ReadFirst returns the first record of r normalized to the ACGTN alphabet.
func ReadFirst(r io.Reader) (Record, error) {
	records, err := ReadFASTA(r)
	if err != nil {
		return Record{}, err
	}
	first := records[0]
	first.Sequence = Normalize(first.Sequence)
	if first.Sequence == "" {
		return Record{}, ErrNoSequence
	}
	return first, nil
}

// Normalize upper-cases s and strips everything outside A, C, G, T and N.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		switch c {
		case 'A', 'C', 'G', 'T', 'N':
			b.WriteByte(c)
		}
	}
	return b.String()
}
