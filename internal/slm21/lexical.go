package slm21

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/RobinHuo/zrc-benchmarks/internal/frame"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
)

// lexicalTask scores the spot-the-word judgments.
type lexicalTask struct {
	params LexicalParams
	quiet  bool
	logger *slog.Logger
}

// lexicalPair is one scored (word, non-word) comparison.
type lexicalPair struct {
	id        int64
	word      string
	nonWord   string
	frequency any // int64 or nil for out-of-vocabulary words
	length    int64
	score     float64
}

// evalSubset scores one set and writes its selected reports.
func (t *lexicalTask) evalSubset(set string, sub *submission.Submission, ci *repo.ContentIndex, outDir string) error {
	item, ok := sub.File("lexical_" + set)
	if !ok {
		return fmt.Errorf("missing from submission")
	}
	gold, err := goldTable(ci, "lexical_"+set, "gold")
	if err != nil {
		return err
	}
	scores, err := frame.Read(item.File, frame.ReadOptions{
		Comma: ' ', Names: []string{"filename", "score"},
	})
	if err != nil {
		return err
	}

	pairs, err := joinAndPair(gold, scores)
	if err != nil {
		return err
	}
	byPair := evalByPair(pairs)

	if t.params.ByFrequency {
		name := filepath.Join(outDir, fmt.Sprintf("score_lexical_%s_by_frequency.csv", set))
		if err := evalByFrequency(byPair).SaveCSV(name); err != nil {
			return err
		}
	}
	if t.params.ByLength {
		name := filepath.Join(outDir, fmt.Sprintf("score_lexical_%s_by_length.csv", set))
		if err := evalByLength(byPair).SaveCSV(name); err != nil {
			return err
		}
	}
	if t.params.ByPair {
		name := filepath.Join(outDir, fmt.Sprintf("score_lexical_%s_by_pair.csv", set))
		if err := pairReport(byPair).SaveCSV(name); err != nil {
			return err
		}
	}
	if !t.quiet {
		t.logger.Info("lexical scores written", "set", set, "pairs", len(byPair))
	}
	return nil
}

// lexicalRow is one joined gold entry with its submitted score.
type lexicalRow struct {
	voice     string
	id        int64
	frequency any
	word      string
	phones    string
	length    int64
	correct   int64
	score     float64
}

// joinAndPair inner-joins the submitted scores onto the gold table by
// filename and pivots the result into (word, non-word) comparisons
// matched on (voice, id).
func joinAndPair(gold, scores *frame.Frame) ([]lexicalPair, error) {
	for _, col := range []string{"filename", "voice", "id", "frequency", "word", "length", "phones", "correct"} {
		if _, ok := gold.Column(col); !ok {
			return nil, fmt.Errorf("gold table has no %q column", col)
		}
	}

	submitted := make(map[string]float64, scores.Len())
	names := scores.Strings("filename")
	values := scores.Floats("score")
	for i, name := range names {
		submitted[name] = values[i]
	}

	filenames := gold.Strings("filename")
	voices := gold.Strings("voice")
	ids := gold.Ints("id")
	words := gold.Strings("word")
	phones := gold.Strings("phones")
	lengths := gold.Ints("length")
	corrects := gold.Ints("correct")

	var rows []lexicalRow
	allNonWordsBlank := true
	for i := range filenames {
		score, ok := submitted[filenames[i]]
		if !ok {
			continue
		}
		if corrects[i] == 0 && words[i] != "" {
			allNonWordsBlank = false
		}
		rows = append(rows, lexicalRow{
			voice:     voices[i],
			id:        ids[i],
			frequency: gold.Cell(i, "frequency"),
			word:      words[i],
			phones:    phones[i],
			length:    lengths[i],
			correct:   corrects[i],
			score:     score,
		})
	}

	// when the gold carries no textual form for the non-words, report
	// every entry by its phonemic form instead
	if allNonWordsBlank {
		for i := range rows {
			rows[i].word = rows[i].phones
		}
	}

	type pivotKey struct {
		voice string
		id    int64
	}
	wordRows := make(map[pivotKey][]lexicalRow)
	nonWordRows := make(map[pivotKey][]lexicalRow)
	var keyOrder []pivotKey
	for _, row := range rows {
		key := pivotKey{row.voice, row.id}
		if len(wordRows[key]) == 0 && len(nonWordRows[key]) == 0 {
			keyOrder = append(keyOrder, key)
		}
		if row.correct == 1 {
			wordRows[key] = append(wordRows[key], row)
		} else {
			nonWordRows[key] = append(nonWordRows[key], row)
		}
	}

	var pairs []lexicalPair
	for _, key := range keyOrder {
		for _, w := range wordRows[key] {
			for _, nw := range nonWordRows[key] {
				score := 0.0
				switch {
				case w.score > nw.score:
					score = 1.0
				case w.score == nw.score:
					score = 0.5
				}
				pairs = append(pairs, lexicalPair{
					id:        w.id,
					word:      w.word,
					nonWord:   nw.word,
					frequency: w.frequency,
					length:    w.length,
					score:     score,
				})
			}
		}
	}
	return pairs, nil
}

// evalByPair averages each pair's score across voices, ordered by pair
// id.
func evalByPair(pairs []lexicalPair) []lexicalPair {
	byID := make(map[int64][]lexicalPair)
	for _, p := range pairs {
		byID[p.id] = append(byID[p.id], p)
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	out := make([]lexicalPair, 0, len(ids))
	for _, id := range ids {
		group := byID[id]
		var sum float64
		for _, p := range group {
			sum += p.score
		}
		mean := group[0]
		mean.score = sum / float64(len(group))
		out = append(out, mean)
	}
	return out
}

// pairReport renders the per-pair scores without the grouping columns.
func pairReport(byPair []lexicalPair) *frame.Frame {
	f := frame.New("word", "non word", "score")
	for _, p := range byPair {
		f.Append(p.word, p.nonWord, p.score)
	}
	return f
}

// frequencyBands in report order. A band covers [Low, High).
var frequencyBands = []struct {
	Label string
	Low   int64
	High  int64
}{
	{"oov", 0, 1},
	{"1-5", 1, 5},
	{"6-20", 5, 20},
	{"21-100", 20, 100},
	{">100", 100, math.MaxInt64},
}

// evalByFrequency collapses the pair scores onto fixed frequency
// bands. Every band is reported, empty ones with no score; pairs with
// an unknown frequency are excluded.
func evalByFrequency(byPair []lexicalPair) *frame.Frame {
	grouped := make(map[string][]float64)
	for _, p := range byPair {
		freq, ok := p.frequency.(int64)
		if !ok {
			continue
		}
		for _, band := range frequencyBands {
			if freq >= band.Low && freq < band.High {
				grouped[band.Label] = append(grouped[band.Label], p.score)
				break
			}
		}
	}

	f := frame.New("frequency", "n", "score", "std")
	for _, band := range frequencyBands {
		f.Append(aggRow(band.Label, grouped[band.Label])...)
	}
	return f
}

// evalByLength collapses the pair scores onto the observed word
// lengths, ascending.
func evalByLength(byPair []lexicalPair) *frame.Frame {
	grouped := make(map[int64][]float64)
	for _, p := range byPair {
		grouped[p.length] = append(grouped[p.length], p.score)
	}
	lengths := make([]int64, 0, len(grouped))
	for l := range grouped {
		lengths = append(lengths, l)
	}
	sort.Slice(lengths, func(a, b int) bool { return lengths[a] < lengths[b] })

	f := frame.New("length", "n", "score", "std")
	for _, l := range lengths {
		f.Append(aggRow(l, grouped[l])...)
	}
	return f
}

// aggRow builds one (key, n, mean, sample std) report row. The mean
// needs at least one score, the std at least two.
func aggRow(key any, scores []float64) []any {
	row := []any{key, int64(len(scores)), nil, nil}
	if len(scores) > 0 {
		row[2] = stat.Mean(scores, nil)
	}
	if len(scores) > 1 {
		row[3] = stat.StdDev(scores, nil)
	}
	return row
}
