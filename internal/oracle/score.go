package oracle

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ajitpratap0/hyperfarm/internal/signal"
)

// Bias cutoffs on the [-1, 1] sentiment score
const (
	LongCutoff  = 0.25
	ShortCutoff = -0.25
)

var (
	labeledScoreRe = regexp.MustCompile(`(?i)score[:\s]+([+-]?\d+\.?\d*)`)
	bareScoreRe    = regexp.MustCompile(`([+-]?(?:1\.0+|0\.\d+))`)
)

var bullishWords = []string{
	"bullish", "accumulation", "breakout", "upside", "strength",
	"oversold bounce", "support holding", "inflows",
}

var bearishWords = []string{
	"bearish", "distribution", "breakdown", "downside", "weakness",
	"resistance rejection", "selling pressure", "outflows",
}

// ExtractScore pulls a sentiment score out of free text. It tries, in
// order: a labeled "score: x" value, the last standalone signed decimal,
// and finally keyword polarity. The result is clamped to [-1, 1].
func ExtractScore(text string) float64 {
	if m := labeledScoreRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return clamp(v)
		}
	}

	if ms := bareScoreRe.FindAllStringSubmatch(text, -1); len(ms) > 0 {
		last := ms[len(ms)-1][1]
		if v, err := strconv.ParseFloat(last, 64); err == nil {
			return clamp(v)
		}
	}

	return keywordScore(text)
}

// keywordScore estimates polarity from vocabulary when no numeric score
// was given: two matches read as mild, four or more as strong.
func keywordScore(text string) float64 {
	lower := strings.ToLower(text)

	bulls, bears := 0, 0
	for _, w := range bullishWords {
		bulls += strings.Count(lower, w)
	}
	for _, w := range bearishWords {
		bears += strings.Count(lower, w)
	}

	net := bulls - bears
	sign := 1.0
	if net < 0 {
		sign = -1.0
		net = -net
	}

	switch {
	case net >= 4:
		return sign * 0.6
	case net >= 2:
		return sign * 0.4
	case net >= 1:
		return sign * 0.2
	default:
		return 0
	}
}

// BiasFor maps a score to a trade direction
func BiasFor(score float64) signal.Direction {
	switch {
	case score <= ShortCutoff:
		return signal.Short
	case score >= LongCutoff:
		return signal.Long
	default:
		return signal.None
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
