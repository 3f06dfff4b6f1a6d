package eval

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// metricFunc computes one metric over the full accumulated set.
type metricFunc func(preds, labels []float64, threshold float64) float64

var metricFuncs = map[string]metricFunc{
	"accuracy":  accuracy,
	"precision": precision,
	"recall":    recall,
	"f1":        f1,
	"roc_auc":   rocAUC,
	"prc_auc":   prcAUC,
	"mse":       mse,
	"rmse":      rmse,
	"mae":       mae,
	"r2":        r2,
	"pearson":   pearson,
	"spearman":  spearman,
	"ci":        concordanceIndex,
}

func confusion(preds, labels []float64, threshold float64) (tp, fp, tn, fn float64) {
	for i := range preds {
		predicted := preds[i] >= threshold
		actual := labels[i] >= 0.5
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}
	return
}

func accuracy(preds, labels []float64, threshold float64) float64 {
	tp, fp, tn, fn := confusion(preds, labels, threshold)
	return (tp + tn) / (tp + fp + tn + fn)
}

func precision(preds, labels []float64, threshold float64) float64 {
	tp, fp, _, _ := confusion(preds, labels, threshold)
	if tp+fp == 0 {
		return 0
	}
	return tp / (tp + fp)
}

func recall(preds, labels []float64, threshold float64) float64 {
	tp, _, _, fn := confusion(preds, labels, threshold)
	if tp+fn == 0 {
		return 0
	}
	return tp / (tp + fn)
}

func f1(preds, labels []float64, threshold float64) float64 {
	p := precision(preds, labels, threshold)
	r := recall(preds, labels, threshold)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// rocAUC uses the rank-sum formulation with average ranks for tied scores,
// equivalent to the Mann-Whitney U statistic.
func rocAUC(preds, labels []float64, _ float64) float64 {
	ranks := averageRanks(preds)
	var rankSum, pos float64
	for i := range labels {
		if labels[i] >= 0.5 {
			rankSum += ranks[i]
			pos++
		}
	}
	neg := float64(len(labels)) - pos
	if pos == 0 || neg == 0 {
		return 0
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

// prcAUC is average precision: precision integrated over recall steps in
// descending score order.
func prcAUC(preds, labels []float64, _ float64) float64 {
	idx := make([]int, len(preds))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return preds[idx[a]] > preds[idx[b]] })

	var totalPos float64
	for _, y := range labels {
		if y >= 0.5 {
			totalPos++
		}
	}
	if totalPos == 0 {
		return 0
	}

	var tp, seen, sum float64
	for _, i := range idx {
		seen++
		if labels[i] >= 0.5 {
			tp++
			sum += tp / seen
		}
	}
	return sum / totalPos
}

func mse(preds, labels []float64, _ float64) float64 {
	var sum float64
	for i := range preds {
		d := preds[i] - labels[i]
		sum += d * d
	}
	return sum / float64(len(preds))
}

func rmse(preds, labels []float64, threshold float64) float64 {
	return math.Sqrt(mse(preds, labels, threshold))
}

func mae(preds, labels []float64, _ float64) float64 {
	var sum float64
	for i := range preds {
		sum += math.Abs(preds[i] - labels[i])
	}
	return sum / float64(len(preds))
}

func r2(preds, labels []float64, _ float64) float64 {
	mean := stat.Mean(labels, nil)
	var ssRes, ssTot float64
	for i := range preds {
		ssRes += (labels[i] - preds[i]) * (labels[i] - preds[i])
		ssTot += (labels[i] - mean) * (labels[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

func pearson(preds, labels []float64, _ float64) float64 {
	r := stat.Correlation(preds, labels, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func spearman(preds, labels []float64, _ float64) float64 {
	r := stat.Correlation(averageRanks(preds), averageRanks(labels), nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// concordanceIndex is the fraction of label-discordant pairs ranked in the
// same order by the predictions, with ties counting half.
func concordanceIndex(preds, labels []float64, _ float64) float64 {
	var concordant, comparable float64
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			if labels[i] == labels[j] {
				continue
			}
			comparable++
			hi, lo := i, j
			if labels[j] > labels[i] {
				hi, lo = j, i
			}
			switch {
			case preds[hi] > preds[lo]:
				concordant++
			case preds[hi] == preds[lo]:
				concordant += 0.5
			}
		}
	}
	if comparable == 0 {
		return 0
	}
	return concordant / comparable
}

// averageRanks assigns 1-based ranks, averaging over ties.
func averageRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
