package metrics

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gannet-bio/gannet/internal/gene"
)

// ReportWriter renders the evaluation summary: raw and normalized confusion
// matrices, the per-category precision/recall/F1 table, and overall
// accuracy.
type ReportWriter struct {
	w *bufio.Writer
}

// NewReportWriter creates a report writer.
func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: bufio.NewWriter(w)}
}

// WriteSummary renders the full report for one confusion matrix.
func (rw *ReportWriter) WriteSummary(cm *ConfusionMatrix) error {
	acc, err := cm.Accuracy()
	if err != nil {
		return err
	}
	scores, err := cm.Scores()
	if err != nil {
		return err
	}

	rw.section("confusion_matrix")
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	rw.matrixHeader(tw)
	for ref := gene.Class(0); ref < gene.NumClasses; ref++ {
		cells := make([]string, gene.NumClasses)
		for pred := gene.Class(0); pred < gene.NumClasses; pred++ {
			cells[pred] = fmt.Sprintf("%d", cm.Count(ref, pred))
		}
		fmt.Fprintf(tw, "%s_ref\t%s\t\n", ref, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rw.section("normalized_confusion_matrix")
	norm := cm.Normalized()
	tw = tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	rw.matrixHeader(tw)
	for ref := gene.Class(0); ref < gene.NumClasses; ref++ {
		cells := make([]string, gene.NumClasses)
		for pred := gene.Class(0); pred < gene.NumClasses; pred++ {
			cells[pred] = fmt.Sprintf("%.4f", norm[ref][pred])
		}
		fmt.Fprintf(tw, "%s_ref\t%s\t\n", ref, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rw.section("F1_summary")
	tw = tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\tPrecision\tRecall\tF1-Score\t\n")
	for i, s := range scores {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t\n", s.Name, s.Precision, s.Recall, s.F1)
		if i == gene.NumClasses-1 {
			fmt.Fprint(tw, "\t\t\t\t\n")
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(rw.w, "\nTotal acc: %.4f\n", acc)
	return rw.w.Flush()
}

// WritePositional renders the per-offset accuracy buckets.
func (rw *ReportWriter) WritePositional(buckets []PositionBucket) error {
	rw.section("positional_accuracy")
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "offset\tbases\taccuracy\t\n")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t\n", b.Offset, b.Bases, b.Accuracy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return rw.w.Flush()
}

func (rw *ReportWriter) section(name string) {
	fmt.Fprintf(rw.w, "\n%s\n", name)
}

func (rw *ReportWriter) matrixHeader(tw *tabwriter.Writer) {
	cols := make([]string, gene.NumClasses)
	for c := gene.Class(0); c < gene.NumClasses; c++ {
		cols[c] = c.String() + "_pred"
	}
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(cols, "\t"))
}
