package metrics

import (
	"github.com/gannet-bio/gannet/internal/gene"
)

// Score holds one category's raw counts and derived metrics. Precision,
// recall, and F1 are 0 rather than undefined when their denominator is 0.
type Score struct {
	Name      string
	TP        uint64
	FP        uint64
	FN        uint64
	Precision float64
	Recall    float64
	F1        float64
}

func newScore(name string, tp, fp, fn uint64) Score {
	s := Score{Name: name, TP: tp, FP: fp, FN: fn}
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Scores derives per-class and composite precision/recall/F1 once
// accumulation is complete. The composites re-bin the same 4x4 counts:
//
//   - legacy_cds forgives exon/intron confusion, scoring their union the way
//     a merged coding class would be scored;
//   - sub_genic merges exon+intron against everything else;
//   - genic merges utr+exon+intron against intergenic.
//
// Rows come back in report order: ig, utr, exon, intron, legacy_cds,
// sub_genic, genic.
func (cm *ConfusionMatrix) Scores() ([]Score, error) {
	if cm.Total() == 0 {
		return nil, EmptyEvaluationSetError{}
	}

	scores := make([]Score, 0, gene.NumClasses+3)

	var perClass [gene.NumClasses]Score
	for c := gene.Class(0); c < gene.NumClasses; c++ {
		tp := cm.counts[c][c]
		var fp, fn uint64
		for other := gene.Class(0); other < gene.NumClasses; other++ {
			if other == c {
				continue
			}
			fp += cm.counts[other][c]
			fn += cm.counts[c][other]
		}
		perClass[c] = newScore(c.String(), tp, fp, fn)
		scores = append(scores, perClass[c])
	}

	ig, utr, exon, intron := gene.Intergenic, gene.UTR, gene.Exon, gene.Intron
	legacy := newScore("legacy_cds",
		cm.counts[exon][exon]+cm.counts[intron][intron]+cm.counts[exon][intron]+cm.counts[intron][exon],
		cm.counts[ig][exon]+cm.counts[ig][intron]+cm.counts[utr][exon]+cm.counts[utr][intron],
		cm.counts[exon][ig]+cm.counts[exon][utr]+cm.counts[intron][ig]+cm.counts[intron][utr])
	scores = append(scores, legacy)

	subGenic := newScore("sub_genic",
		perClass[exon].TP+perClass[intron].TP,
		perClass[exon].FP+perClass[intron].FP,
		perClass[exon].FN+perClass[intron].FN)
	scores = append(scores, subGenic)

	genic := newScore("genic",
		perClass[utr].TP+perClass[exon].TP+perClass[intron].TP,
		perClass[utr].FP+perClass[exon].FP+perClass[intron].FP,
		perClass[utr].FN+perClass[exon].FN+perClass[intron].FN)
	scores = append(scores, genic)

	return scores, nil
}

// GenicF1 returns the genic composite F1, the single number used for model
// selection.
func (cm *ConfusionMatrix) GenicF1() (float64, error) {
	scores, err := cm.Scores()
	if err != nil {
		return 0, err
	}
	return scores[len(scores)-1].F1, nil
}
