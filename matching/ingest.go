package matching

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/vamsianumula/sublinear-mpc-matching/enforce"
)

// LoadEdgeListFile reads a plain whitespace-separated edge list ("u v" per
// line, "#" comments ignored) and partitions it into p worker-local raw
// slices, round-robin by input order. This stands in for the ingestion
// collaborator the engine assumes: self-loops are dropped here and
// duplicates are left for the engine's defensive placement-time dedup.
func LoadEdgeListFile(path string, p int) ([][]Edge, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out := make([][]Edge, p)
	scanner := bufio.NewScanner(file)
	idx := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		enforce.ENFORCE(len(fields) >= 2, "malformed edge list line", line)

		u, uerr := strconv.ParseUint(fields[0], 10, 64)
		v, verr := strconv.ParseUint(fields[1], 10, 64)
		if uerr != nil || verr != nil {
			return nil, newErr(KindMalformedGraph, "non-numeric vertex id in edge list")
		}
		if u == v {
			continue
		}

		out[idx%p] = append(out[idx%p], Edge{U: RawID(u), V: RawID(v)})
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
