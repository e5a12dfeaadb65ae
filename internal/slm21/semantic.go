package slm21

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/RobinHuo/zrc-benchmarks/internal/frame"
	"github.com/RobinHuo/zrc-benchmarks/internal/items"
	"github.com/RobinHuo/zrc-benchmarks/internal/repo"
	"github.com/RobinHuo/zrc-benchmarks/internal/submission"
)

// Semantic type labels used by the gold and pairs tables.
const (
	typeLibrispeech = "librispeech"
	typeSynthetic   = "synthetic"
)

// semanticTask scores pooled submission embeddings against human
// similarity judgments.
type semanticTask struct {
	params SemanticParams
	quiet  bool
	logger *slog.Logger
}

// enabledTypes lists the semantic types selected by the params.
func (t *semanticTask) enabledTypes() map[string]bool {
	return map[string]bool{
		typeLibrispeech: t.params.Librispeech,
		typeSynthetic:   t.params.Synthetic,
	}
}

// goldToken is one gold utterance: a recording of a word.
type goldToken struct {
	typ      string
	filename string
	voice    string
	word     string
}

// semanticGold indexes the gold tokens by type and word.
type semanticGold struct {
	tokens []goldToken
	byWord map[string][]int
}

func wordKey(typ, word string) string {
	return typ + "\x00" + word
}

func poolKey(typ, filename string) string {
	return typ + "\x00" + filename
}

// parseGold reads the gold table, keeping only enabled types.
func parseGold(gold *frame.Frame, enabled map[string]bool) (*semanticGold, error) {
	for _, col := range []string{"type", "filename", "voice", "word"} {
		if _, ok := gold.Column(col); !ok {
			return nil, fmt.Errorf("gold table has no %q column", col)
		}
	}
	types := gold.Strings("type")
	filenames := gold.Strings("filename")
	voices := gold.Strings("voice")
	words := gold.Strings("word")

	g := &semanticGold{byWord: make(map[string][]int)}
	for i := range types {
		if !enabled[types[i]] {
			continue
		}
		g.tokens = append(g.tokens, goldToken{
			typ:      types[i],
			filename: filenames[i],
			voice:    voices[i],
			word:     words[i],
		})
		key := wordKey(types[i], words[i])
		g.byWord[key] = append(g.byWord[key], len(g.tokens)-1)
	}
	return g, nil
}

func (g *semanticGold) wordTokens(typ, word string) []goldToken {
	idx := g.byWord[wordKey(typ, word)]
	tokens := make([]goldToken, len(idx))
	for k, i := range idx {
		tokens[k] = g.tokens[i]
	}
	return tokens
}

// evalSubset scores one set and writes its pair and correlation
// reports.
func (t *semanticTask) evalSubset(ctx context.Context, set string, sub *submission.Submission, ci *repo.ContentIndex, outDir string) error {
	goldF, err := goldTable(ci, "semantic_"+set, "gold")
	if err != nil {
		return err
	}
	pairsF, err := goldTable(ci, "semantic_"+set, "pairs")
	if err != nil {
		return err
	}

	scored, corr, err := t.eval(ctx, goldF, pairsF, t.fileIndex(sub, set))
	if err != nil {
		return err
	}

	name := filepath.Join(outDir, fmt.Sprintf("score_semantic_%s_pairs.csv", set))
	if err := scored.SaveCSV(name); err != nil {
		return err
	}
	if corr != nil {
		name := filepath.Join(outDir, fmt.Sprintf("score_semantic_%s_correlation.csv", set))
		if err := corr.SaveCSV(name); err != nil {
			return err
		}
	}
	if !t.quiet {
		t.logger.Info("semantic scores written", "set", set, "pairs", scored.Len())
	}
	return nil
}

// fileIndex maps type → stem → submitted file path for one set.
func (t *semanticTask) fileIndex(sub *submission.Submission, set string) map[string]map[string]string {
	index := make(map[string]map[string]string)
	for typ, on := range t.enabledTypes() {
		if !on {
			continue
		}
		list, ok := sub.FileList(fmt.Sprintf("semantic_%s_%s", set, typ))
		if !ok {
			continue
		}
		byStem := make(map[string]string, len(list.Files))
		for _, f := range list.Files {
			byStem[items.Stem(f)] = f
		}
		index[typ] = byStem
	}
	return index
}

// eval pools every gold token's features, scores each pair of words
// with the configured distance, and optionally correlates the
// distances with the human judgments.
func (t *semanticTask) eval(ctx context.Context, gold, pairs *frame.Frame, index map[string]map[string]string) (*frame.Frame, *frame.Frame, error) {
	enabled := t.enabledTypes()
	g, err := parseGold(gold, enabled)
	if err != nil {
		return nil, nil, err
	}
	pools, err := t.poolAll(ctx, g, index)
	if err != nil {
		return nil, nil, err
	}
	scored, err := t.scorePairs(pairs, g, pools)
	if err != nil {
		return nil, nil, err
	}

	var corr *frame.Frame
	if t.params.Correlations {
		corr, err = correlate(scored)
		if err != nil {
			return nil, nil, err
		}
	}
	return scored, corr, nil
}

// poolAll pools the features of every gold token, loading at most
// NJobs files at a time.
func (t *semanticTask) poolAll(ctx context.Context, g *semanticGold, index map[string]map[string]string) (map[string][]float64, error) {
	limit := t.params.NJobs
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}

	vectors := make([][]float64, len(g.tokens))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	for i, tok := range g.tokens {
		i, tok := i, tok
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, ok := index[tok.typ][tok.filename]
			if !ok {
				return fmt.Errorf("no submitted %s file for %s", tok.typ, tok.filename)
			}
			features, err := ReadFeatures(path)
			if err != nil {
				return err
			}
			vectors[i], err = t.params.Pooling.Pool(features)
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	pools := make(map[string][]float64, len(g.tokens))
	for i, tok := range g.tokens {
		pools[poolKey(tok.typ, tok.filename)] = vectors[i]
	}
	return pools, nil
}

// scorePairs appends a distance score to every pair row of an enabled
// type; rows of disabled types are dropped.
func (t *semanticTask) scorePairs(pairs *frame.Frame, g *semanticGold, pools map[string][]float64) (*frame.Frame, error) {
	for _, col := range []string{"type", "word_1", "word_2"} {
		if _, ok := pairs.Column(col); !ok {
			return nil, fmt.Errorf("pairs table has no %q column", col)
		}
	}
	enabled := t.enabledTypes()
	types := pairs.Strings("type")
	word1s := pairs.Strings("word_1")
	word2s := pairs.Strings("word_2")

	cols := append(append([]string{}, pairs.Columns()...), "score")
	out := frame.New(cols...)
	for i := 0; i < pairs.Len(); i++ {
		if !enabled[types[i]] {
			continue
		}
		score, err := t.pairDistance(types[i], word1s[i], word2s[i], g, pools)
		if err != nil {
			return nil, err
		}
		row := make([]any, 0, len(cols))
		for _, c := range pairs.Columns() {
			row = append(row, pairs.Cell(i, c))
		}
		row = append(row, score)
		out.Append(row...)
	}
	return out, nil
}

// pairDistance scores one pair of words. For librispeech the distance
// is the mean over all token combinations; for synthetic only tokens
// sharing a voice are compared.
func (t *semanticTask) pairDistance(typ, word1, word2 string, g *semanticGold, pools map[string][]float64) (float64, error) {
	tokens1 := g.wordTokens(typ, word1)
	tokens2 := g.wordTokens(typ, word2)

	if typ == typeLibrispeech {
		if n := len(tokens1); n == 0 || n > 10 {
			return 0, fmt.Errorf("librispeech word %q has %d tokens, want 1 to 10", word1, n)
		}
		if n := len(tokens2); n == 0 || n > 10 {
			return 0, fmt.Errorf("librispeech word %q has %d tokens, want 1 to 10", word2, n)
		}
		var sum float64
		for _, tk1 := range tokens1 {
			for _, tk2 := range tokens2 {
				d, err := t.params.Metric.Distance(
					pools[poolKey(typ, tk1.filename)], pools[poolKey(typ, tk2.filename)])
				if err != nil {
					return 0, err
				}
				sum += d
			}
		}
		return sum / float64(len(tokens1)*len(tokens2)), nil
	}

	var sum float64
	n := 0
	for _, tk1 := range tokens1 {
		for _, tk2 := range tokens2 {
			if tk1.voice != tk2.voice {
				continue
			}
			d, err := t.params.Metric.Distance(
				pools[poolKey(typ, tk1.filename)], pools[poolKey(typ, tk2.filename)])
			if err != nil {
				return 0, err
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no shared voice between %q and %q", word1, word2)
	}
	return sum / float64(n), nil
}

// correlate computes the Spearman correlation of machine distances
// against the human judgments, per (type, dataset) group. Humans rate
// similarity (high when close), distances are low when close, so the
// human scores are negated first.
func correlate(scored *frame.Frame) (*frame.Frame, error) {
	for _, col := range []string{"dataset", "similarity", "relatedness", "score"} {
		if _, ok := scored.Column(col); !ok {
			return nil, fmt.Errorf("pairs table has no %q column", col)
		}
	}
	types := scored.Strings("type")
	datasets := scored.Strings("dataset")
	similarity := scored.Floats("similarity")
	relatedness := scored.Floats("relatedness")
	scores := scored.Floats("score")

	type group struct{ typ, dataset string }
	members := make(map[group][]int)
	for i := range types {
		g := group{types[i], datasets[i]}
		members[g] = append(members[g], i)
	}
	order := make([]group, 0, len(members))
	for g := range members {
		order = append(order, g)
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].typ != order[b].typ {
			return order[a].typ < order[b].typ
		}
		return order[a].dataset < order[b].dataset
	})

	out := frame.New("type", "dataset", "correlation")
	for _, g := range order {
		idx := members[g]
		human := pick(relatedness, idx)
		if hasNaN(human) {
			human = pick(similarity, idx)
		}
		negated := make([]float64, len(human))
		for k, v := range human {
			negated[k] = -v
		}
		out.Append(g.typ, g.dataset, 100*spearman(negated, pick(scores, idx)))
	}
	return out, nil
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}
