package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadWord2Vec parses the word2vec text format: a "count dim" header line
// followed by one "word v1 ... vdim" line per token.
func ReadWord2Vec(path string) (map[string][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word vectors: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	if !scanner.Scan() {
		return nil, fmt.Errorf("word vectors file is empty")
	}
	head := strings.Fields(scanner.Text())
	if len(head) != 2 {
		return nil, fmt.Errorf("word vectors header %q is not \"count dim\"", scanner.Text())
	}
	count, err1 := strconv.Atoi(head[0])
	dim, err2 := strconv.Atoi(head[1])
	if err1 != nil || err2 != nil || dim <= 0 {
		return nil, fmt.Errorf("word vectors header %q is not numeric", scanner.Text())
	}

	out := make(map[string][]float32, count)
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("word vectors line %d has %d values, want %d", line, len(fields)-1, dim)
		}
		vec := make([]float32, dim)
		for i, raw := range fields[1:] {
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return nil, fmt.Errorf("word vectors line %d: %w", line, err)
			}
			vec[i] = float32(v)
		}
		out[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan word vectors: %w", err)
	}
	return out, nil
}
