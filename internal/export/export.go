// Package export writes embeddings in the SMORe text format: a
// "<count> <dim>" header, then one "<name> v1 ... vd" line per vector.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Write writes names[i] with vectors[i] for every i
func Write(w io.Writer, names []string, vectors [][]float64) error {
	if len(names) != len(vectors) {
		return errors.Errorf("%d names for %d vectors", len(names), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(vectors), dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return errors.Errorf("vector %q has dim %d, want %d", names[i], len(vec), dim)
		}
		bw.WriteString(names[i])
		for _, v := range vec {
			fmt.Fprintf(bw, " %.6f", v)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Save writes the embeddings to filename
func Save(filename string, names []string, vectors [][]float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := Write(file, names, vectors); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
